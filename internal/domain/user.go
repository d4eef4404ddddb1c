package domain

import "time"

// Role is the authorization tier of an account
type Role string

const (
	RoleCustomer      Role = "customer"
	RoleAdministrator Role = "administrator"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdministrator
}

// User represents an account in the system
type User struct {
	ID                         string     `json:"id" db:"id"`
	Email                      string     `json:"email" db:"email"`
	PasswordHash               string     `json:"-" db:"password_hash"`
	FullName                   string     `json:"fullName" db:"full_name"`
	Role                       Role       `json:"role" db:"role"`
	IsActive                   bool       `json:"isActive" db:"is_active"`
	EmailVerified              bool       `json:"emailVerified" db:"email_verified"`
	EmailVerificationSecret    *string    `json:"-" db:"email_verification_secret"`
	EmailVerificationExpiresAt *time.Time `json:"-" db:"email_verification_expires_at"`
	CreatedAt                  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt                  time.Time  `json:"updatedAt" db:"updated_at"`
	LastLoginAt                *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
}

// IsAdmin reports whether the user holds the administrator role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdministrator
}

// VerificationUsable reports whether the pending email verification secret can still be consumed
func (u *User) VerificationUsable(now time.Time) bool {
	return u.EmailVerificationSecret != nil &&
		u.EmailVerificationExpiresAt != nil &&
		u.EmailVerificationExpiresAt.After(now)
}

// ClearVerification drops the pending email verification secret
func (u *User) ClearVerification() {
	u.EmailVerificationSecret = nil
	u.EmailVerificationExpiresAt = nil
}

// RefreshToken is a ledger entry for an issued refresh token
type RefreshToken struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"userId" db:"user_id"`
	TokenHash string     `json:"-" db:"token_hash"`
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at"`
	IsRevoked bool       `json:"isRevoked" db:"is_revoked"`
	RevokedAt *time.Time `json:"revokedAt,omitempty" db:"revoked_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UserAgent *string    `json:"userAgent,omitempty" db:"user_agent"`
	IPAddress *string    `json:"ipAddress,omitempty" db:"ip_address"`
}

// IsUsable reports whether the token may still mint access tokens
func (t *RefreshToken) IsUsable(now time.Time) bool {
	return !t.IsRevoked && t.ExpiresAt.After(now)
}

// PasswordReset is a ledger entry for an issued password reset secret
type PasswordReset struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"userId" db:"user_id"`
	Email     string     `json:"email" db:"email"`
	TokenHash string     `json:"-" db:"token_hash"`
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at"`
	Used      bool       `json:"used" db:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// IsUsable reports whether the reset secret can still be consumed
func (p *PasswordReset) IsUsable(now time.Time) bool {
	return !p.Used && p.ExpiresAt.After(now)
}
