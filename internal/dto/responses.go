package dto

import (
	"time"

	"github.com/prperemyshlev/aths/internal/apperrors"
	"github.com/prperemyshlev/aths/internal/domain"
)

// AuthResponse is returned by every call that issues a token pair
type AuthResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int          `json:"expiresIn"`
	User         UserResponse `json:"user"`
}

// AccessTokenResponse is returned by refresh
type AccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
}

// UserResponse represents a user response
type UserResponse struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	FullName      string  `json:"fullName"`
	Role          string  `json:"role"`
	IsActive      bool    `json:"isActive"`
	EmailVerified bool    `json:"emailVerified"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
	LastLoginAt   *string `json:"lastLoginAt"`
}

// NewUserResponse converts a user to its public shape
func NewUserResponse(user *domain.User) UserResponse {
	response := UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		FullName:      user.FullName,
		Role:          string(user.Role),
		IsActive:      user.IsActive,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     user.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if user.LastLoginAt != nil {
		lastLogin := user.LastLoginAt.UTC().Format(time.RFC3339)
		response.LastLoginAt = &lastLogin
	}

	return response
}

// SessionResponse describes one live refresh token
type SessionResponse struct {
	ID        string  `json:"id"`
	CreatedAt string  `json:"createdAt"`
	ExpiresAt string  `json:"expiresAt"`
	UserAgent *string `json:"userAgent,omitempty"`
	IPAddress *string `json:"ipAddress,omitempty"`
}

func NewSessionResponse(token *domain.RefreshToken) SessionResponse {
	return SessionResponse{
		ID:        token.ID,
		CreatedAt: token.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt: token.ExpiresAt.UTC().Format(time.RFC3339),
		UserAgent: token.UserAgent,
		IPAddress: token.IPAddress,
	}
}

// SessionsResponse wraps the session list
type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Fields  []apperrors.FieldError `json:"fields,omitempty"`
	Details any                    `json:"details,omitempty"`
}
