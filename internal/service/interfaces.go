package service

import (
	"context"

	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/dto"
)

// AuthService defines methods for authentication and session operations
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.AccessTokenResponse, error)
	// Logout revokes refreshToken if it belongs to userID. An empty token is a no-op.
	Logout(ctx context.Context, userID, refreshToken string) error
	// VerifyAccess checks the access token and that its user still exists and is active.
	VerifyAccess(ctx context.Context, accessToken string) (*domain.User, error)
	GetUser(ctx context.Context, userID string) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) (*dto.AuthResponse, error)
	ListSessions(ctx context.Context, userID string) (*dto.SessionsResponse, error)
}

// RecoveryService drives the password reset and email verification flows
type RecoveryService interface {
	RequestPasswordReset(ctx context.Context, email string) (*dto.SuccessResponse, error)
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) (*dto.SuccessResponse, error)
	SendVerificationEmail(ctx context.Context, userID string) (*dto.SuccessResponse, error)
	VerifyEmail(ctx context.Context, token string) (*dto.UserResponse, error)
}

// AccountService holds account lifecycle operations performed by administrators or the owner
type AccountService interface {
	ChangeRole(ctx context.Context, actorID, targetID string, role domain.Role) (*dto.UserResponse, error)
	SetActive(ctx context.Context, actorID, targetID string, active bool) (*dto.UserResponse, error)
	DeactivateSelf(ctx context.Context, userID string) error
	DeleteUser(ctx context.Context, actorID, targetID string) error
}
