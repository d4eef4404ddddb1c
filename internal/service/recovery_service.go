package service

import (
	"context"
	"errors"
	"time"

	"github.com/prperemyshlev/aths/internal/apperrors"
	"github.com/prperemyshlev/aths/internal/audit"
	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/dto"
	"github.com/prperemyshlev/aths/internal/notify"
	"github.com/prperemyshlev/aths/internal/repository"
	"github.com/prperemyshlev/aths/internal/utils"
	"go.uber.org/zap"
)

const (
	msgPasswordReset    = "Password has been reset successfully"
	msgVerificationSent = "Verification email sent"
)

// recoveryService implements RecoveryService. Reset and verification secrets
// are stored as sha256 hashes; a secret is usable until it is consumed or expires.
type recoveryService struct {
	userRepo        repository.UserRepository
	resetRepo       repository.PasswordResetRepository
	sessions        *SessionManager
	hasher          *utils.PasswordHasher
	effects         sideEffects
	logger          *zap.Logger
	now             func() time.Time
	resetTTL        time.Duration
	verificationTTL time.Duration
}

func NewRecoveryService(deps Dependencies, sessions *SessionManager) RecoveryService {
	deps = deps.withDefaults()
	return &recoveryService{
		userRepo:        deps.Repositories.User,
		resetRepo:       deps.Repositories.PasswordReset,
		sessions:        sessions,
		hasher:          deps.Hasher,
		effects:         newSideEffects(deps),
		logger:          deps.Logger,
		now:             deps.Clock,
		resetTTL:        deps.PasswordResetTTL,
		verificationTTL: deps.EmailVerificationTTL,
	}
}

// RequestPasswordReset issues a reset secret. Unknown emails get the same answer as known ones.
func (s *recoveryService) RequestPasswordReset(ctx context.Context, email string) (*dto.SuccessResponse, error) {
	email = utils.SanitizeEmail(email)
	if !utils.ValidateEmail(email) {
		return nil, apperrors.Validation(MsgValidationFailed, apperrors.Field("email", MsgInvalidEmail))
	}

	generic := &dto.SuccessResponse{Message: MsgPasswordResetSent}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return generic, nil
		}
		return nil, internal("failed to get user", err)
	}

	if !user.IsActive {
		return nil, accountDeactivated()
	}

	now := s.now()
	if _, err := s.resetRepo.InvalidateUnusedForUser(ctx, user.ID, now); err != nil {
		return nil, internal("failed to invalidate previous reset tokens", err)
	}

	secret, err := utils.GenerateOpaqueSecret()
	if err != nil {
		return nil, internal("failed to generate reset token", err)
	}

	reset := &domain.PasswordReset{
		UserID:    user.ID,
		Email:     user.Email,
		TokenHash: utils.HashToken(secret),
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}
	if err := s.resetRepo.Create(ctx, reset); err != nil {
		return nil, internal("failed to store reset token", err)
	}

	s.effects.record(ctx, audit.Event{
		UserID:  user.ID,
		Action:  audit.ActionPasswordResetRequested,
		Details: "Password reset requested",
	})
	s.effects.mail("password-reset", func(ctx context.Context, m notify.Mailer) error {
		return m.SendPasswordReset(ctx, recipient(user), secret)
	})

	return generic, nil
}

// ResetPassword consumes a reset secret and replaces the password
func (s *recoveryService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) (*dto.SuccessResponse, error) {
	reset, err := s.resetRepo.GetByTokenHash(ctx, utils.HashToken(req.Token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidResetToken()
		}
		return nil, internal("failed to look up reset token", err)
	}

	now := s.now()
	if !reset.IsUsable(now) {
		return nil, invalidResetToken()
	}

	user, err := s.userRepo.GetByID(ctx, reset.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidResetToken()
		}
		return nil, internal("failed to get user", err)
	}
	if !user.IsActive {
		return nil, accountDeactivated()
	}

	if !utils.ValidatePassword(req.NewPassword) {
		return nil, apperrors.Validation(MsgValidationFailed, passwordPolicyField("newPassword"))
	}
	if s.hasher.Compare(user.PasswordHash, req.NewPassword) {
		return nil, passwordUnchanged()
	}

	// claim the record before touching the password so concurrent redemptions lose
	if err := s.resetRepo.MarkUsed(ctx, reset.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidResetToken()
		}
		return nil, internal("failed to consume reset token", err)
	}

	passwordHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return nil, internal("failed to hash password", err)
	}

	user.PasswordHash = passwordHash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, internal("failed to update password", err)
	}

	if _, err := s.sessions.RevokeAll(ctx, user.ID, reasonPasswordReset); err != nil {
		return nil, err
	}

	s.effects.record(ctx, audit.Event{
		UserID:  user.ID,
		Action:  audit.ActionPasswordReset,
		Details: "Password reset",
	})
	s.effects.mail("password-changed", func(ctx context.Context, m notify.Mailer) error {
		return m.SendPasswordChanged(ctx, recipient(user))
	})

	return &dto.SuccessResponse{Message: msgPasswordReset}, nil
}

// SendVerificationEmail stores a fresh verification secret on the user and mails it
func (s *recoveryService) SendVerificationEmail(ctx context.Context, userID string) (*dto.SuccessResponse, error) {
	user, err := loadUser(ctx, s.userRepo, userID)
	if err != nil {
		return nil, err
	}

	if user.EmailVerified {
		return nil, apperrors.Validation(MsgAlreadyVerified, apperrors.Field("email", MsgAlreadyVerified))
	}

	secret, err := utils.GenerateOpaqueSecret()
	if err != nil {
		return nil, internal("failed to generate verification token", err)
	}

	hash := utils.HashToken(secret)
	expiresAt := s.now().Add(s.verificationTTL)
	user.EmailVerificationSecret = &hash
	user.EmailVerificationExpiresAt = &expiresAt

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, internal("failed to store verification token", err)
	}

	s.effects.mail("email-verification", func(ctx context.Context, m notify.Mailer) error {
		return m.SendEmailVerification(ctx, recipient(user), secret)
	})

	return &dto.SuccessResponse{Message: msgVerificationSent}, nil
}

// VerifyEmail consumes a verification secret
func (s *recoveryService) VerifyEmail(ctx context.Context, token string) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByVerificationSecret(ctx, utils.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidVerification()
		}
		return nil, internal("failed to look up verification token", err)
	}

	if !user.VerificationUsable(s.now()) {
		return nil, invalidVerification()
	}

	user.EmailVerified = true
	user.ClearVerification()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, internal("failed to update user", err)
	}

	s.effects.record(ctx, audit.Event{
		UserID:  user.ID,
		Action:  audit.ActionEmailVerified,
		Details: "Email verified",
	})

	s.logger.Info("Email verified", zap.String("user_id", user.ID))
	response := dto.NewUserResponse(user)
	return &response, nil
}
