package repository

import (
	"context"
	"time"

	"github.com/prperemyshlev/aths/internal/domain"
)

// UserRepository is the credential store
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByVerificationSecret looks up the user holding the given secret hash, expired or not.
	GetByVerificationSecret(ctx context.Context, secretHash string) (*domain.User, error)
	// Update saves every mutable field of user.
	Update(ctx context.Context, user *domain.User) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	CountActiveByRole(ctx context.Context, role domain.Role) (int64, error)
	Delete(ctx context.Context, id string) error
}

// RefreshTokenRepository is the refresh token ledger
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// GetActiveByUserID returns tokens that are neither revoked nor expired at now, newest first.
	GetActiveByUserID(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error)
	// Revoke reports whether a not yet revoked token was found and revoked.
	Revoke(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

// PasswordResetRepository is the password reset ledger
type PasswordResetRepository interface {
	Create(ctx context.Context, reset *domain.PasswordReset) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordReset, error)
	InvalidateUnusedForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	// MarkUsed claims an unused record. It returns ErrNotFound if the record
	// does not exist or was already used.
	MarkUsed(ctx context.Context, id string, at time.Time) error
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}
