package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/prperemyshlev/aths/internal/apperrors"
	"github.com/prperemyshlev/aths/internal/audit"
	"github.com/prperemyshlev/aths/internal/crms"
	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/dto"
	"github.com/prperemyshlev/aths/internal/notify"
	"github.com/prperemyshlev/aths/internal/repository"
	"github.com/prperemyshlev/aths/internal/utils"
	"go.uber.org/zap"
)

// authService implements AuthService interface
type authService struct {
	userRepo repository.UserRepository
	sessions *SessionManager
	jwt      *utils.JWTManager
	hasher   *utils.PasswordHasher
	effects  sideEffects
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(deps Dependencies, sessions *SessionManager) AuthService {
	deps = deps.withDefaults()
	return &authService{
		userRepo: deps.Repositories.User,
		sessions: sessions,
		jwt:      deps.JWT,
		hasher:   deps.Hasher,
		effects:  newSideEffects(deps),
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      deps.Clock,
	}
}

// Register registers a new user
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := utils.SanitizeEmail(req.Email)
	fullName := utils.SanitizeName(req.FullName)

	var fields []apperrors.FieldError
	if !utils.ValidateEmail(email) {
		fields = append(fields, apperrors.Field("email", MsgInvalidEmail))
	}
	if !utils.ValidatePassword(req.Password) {
		fields = append(fields, passwordPolicyField("password"))
	}
	if field, ok := validateFullName(fullName); !ok {
		fields = append(fields, field)
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(MsgValidationFailed, fields...)
	}

	// Check if user already exists
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, emailTaken()
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, internal("failed to check user existence", err)
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, internal("failed to hash password", err)
	}

	now := s.now()
	user := &domain.User{
		Email:         email,
		PasswordHash:  passwordHash,
		FullName:      fullName,
		Role:          domain.RoleCustomer,
		IsActive:      true,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, emailTaken()
		}
		return nil, internal("failed to create user", err)
	}

	pair, err := s.sessions.IssueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.registered(ctx)
	s.effects.createCustomer(crms.Customer{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
	})
	s.effects.record(ctx, audit.Event{
		UserID:  user.ID,
		Action:  audit.ActionRegister,
		Details: "User registered",
	})
	s.effects.mail("welcome", func(ctx context.Context, m notify.Mailer) error {
		return m.SendWelcome(ctx, recipient(user))
	})

	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return authResponse(pair, user), nil
}

// Login authenticates a user
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	email := utils.SanitizeEmail(req.Email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, internal("failed to get user", err)
		}
		// burn the same bcrypt time as a real comparison
		s.hasher.CompareDummy(req.Password)
		s.failedLogin(ctx, "", email, "unknown_email")
		return nil, invalidCredentials()
	}

	if !s.hasher.Compare(user.PasswordHash, req.Password) {
		s.failedLogin(ctx, user.ID, email, "wrong_password")
		return nil, invalidCredentials()
	}

	if !user.IsActive {
		s.failedLogin(ctx, user.ID, email, "deactivated")
		return nil, accountDeactivated()
	}

	now := s.now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("Failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	pair, err := s.sessions.IssueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.login(ctx, "success")
	s.effects.record(ctx, audit.Event{
		UserID:  user.ID,
		Action:  audit.ActionLogin,
		Details: "User logged in",
	})

	return authResponse(pair, user), nil
}

func (s *authService) failedLogin(ctx context.Context, userID, email, reason string) {
	s.metrics.login(ctx, reason)
	s.effects.record(ctx, audit.Event{
		UserID:   userID,
		Action:   audit.ActionFailedLogin,
		Details:  "Login failed",
		Metadata: map[string]string{"email": email, "reason": reason},
		Status:   audit.StatusFailure,
	})
}

// Refresh exchanges a refresh token for a new access token
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.AccessTokenResponse, error) {
	token, err := s.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	return &dto.AccessTokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
	}, nil
}

// Logout revokes the caller's refresh token
func (s *authService) Logout(ctx context.Context, userID, refreshToken string) error {
	if refreshToken != "" {
		owned, err := s.sessions.Owns(ctx, userID, refreshToken)
		if err != nil {
			return err
		}
		if owned {
			if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
				return err
			}
		}
	}

	s.effects.record(ctx, audit.Event{
		UserID:  userID,
		Action:  audit.ActionLogout,
		Details: "User logged out",
	})
	return nil
}

// VerifyAccess validates an access token against the live account
func (s *authService) VerifyAccess(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.jwt.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, invalidAccessToken()
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidAccessToken()
		}
		return nil, internal("failed to get user", err)
	}

	if !user.IsActive {
		return nil, accountDeactivated()
	}

	return user, nil
}

// GetUser retrieves user by ID
func (s *authService) GetUser(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	response := dto.NewUserResponse(user)
	return &response, nil
}

// UpdateProfile changes the mutable profile fields of the user
func (s *authService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	fullName := utils.SanitizeName(req.FullName)
	if field, ok := validateFullName(fullName); !ok {
		return nil, apperrors.Validation(MsgValidationFailed, field)
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.FullName = fullName
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, internal("failed to update user", err)
	}

	response := dto.NewUserResponse(user)
	return &response, nil
}

// ChangePassword replaces the password, ends every session and starts a new one
func (s *authService) ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) (*dto.AuthResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !s.hasher.Compare(user.PasswordHash, req.CurrentPassword) {
		return nil, apperrors.Unauthorized(MsgWrongCurrentPassword,
			apperrors.Field("currentPassword", MsgWrongCurrentPassword))
	}

	if req.NewPassword == req.CurrentPassword {
		return nil, passwordUnchanged()
	}

	if !utils.ValidatePassword(req.NewPassword) {
		return nil, apperrors.Validation(MsgValidationFailed, passwordPolicyField("newPassword"))
	}

	passwordHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return nil, internal("failed to hash password", err)
	}

	user.PasswordHash = passwordHash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, internal("failed to update password", err)
	}

	if _, err := s.sessions.RevokeAll(ctx, user.ID, reasonPasswordChange); err != nil {
		return nil, err
	}

	pair, err := s.sessions.IssueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.effects.record(ctx, audit.Event{
		UserID:  user.ID,
		Action:  audit.ActionPasswordChange,
		Details: "Password changed",
	})
	s.effects.mail("password-changed", func(ctx context.Context, m notify.Mailer) error {
		return m.SendPasswordChanged(ctx, recipient(user))
	})

	return authResponse(pair, user), nil
}

// ListSessions returns the user's live refresh tokens
func (s *authService) ListSessions(ctx context.Context, userID string) (*dto.SessionsResponse, error) {
	tokens, err := s.sessions.Active(ctx, userID)
	if err != nil {
		return nil, err
	}

	response := &dto.SessionsResponse{Sessions: make([]dto.SessionResponse, 0, len(tokens))}
	for _, token := range tokens {
		response.Sessions = append(response.Sessions, dto.NewSessionResponse(token))
	}
	return response, nil
}

func (s *authService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	return loadUser(ctx, s.userRepo, userID)
}

func loadUser(ctx context.Context, users repository.UserRepository, userID string) (*domain.User, error) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, internal("failed to get user", err)
	}
	return user, nil
}

func validateFullName(fullName string) (apperrors.FieldError, bool) {
	switch {
	case fullName == "":
		return apperrors.Field("fullName", MsgFullNameRequired), false
	case utf8.RuneCountInString(fullName) > maxFullNameLength:
		return apperrors.Field("fullName", MsgFullNameTooLong), false
	}
	return apperrors.FieldError{}, true
}

func authResponse(pair *domain.TokenPair, user *domain.User) *dto.AuthResponse {
	return &dto.AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		User:         dto.NewUserResponse(user),
	}
}

func recipient(user *domain.User) notify.Recipient {
	return notify.Recipient{Email: user.Email, Name: user.FullName}
}
