package service

import (
	"context"
	"errors"
	"time"

	"github.com/prperemyshlev/aths/internal/audit"
	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/repository"
	"github.com/prperemyshlev/aths/internal/utils"
	"go.uber.org/zap"
)

const tokenTypeBearer = "Bearer"

// Revocation reasons reported on aths_token_revocations_total
const (
	reasonLogout         = "logout"
	reasonPasswordChange = "password_change"
	reasonPasswordReset  = "password_reset"
	reasonRoleChange     = "role_change"
	reasonDeactivation   = "deactivation"
	reasonDeletion       = "deletion"
)

// SessionManager issues, rotates and revokes refresh tokens.
// Plaintext refresh tokens are never stored, only their sha256 hash.
type SessionManager struct {
	tokens  repository.RefreshTokenRepository
	jwt     *utils.JWTManager
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewSessionManager(deps Dependencies) *SessionManager {
	deps = deps.withDefaults()
	return &SessionManager{
		tokens:  deps.Repositories.RefreshToken,
		jwt:     deps.JWT,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		now:     deps.Clock,
	}
}

// IssueTokenPair mints an access and refresh token for user and records the refresh token
func (m *SessionManager) IssueTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	payload := domain.TokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}

	accessToken, err := m.jwt.GenerateAccessToken(payload)
	if err != nil {
		return nil, internal("failed to generate access token", err)
	}

	refreshToken, err := m.jwt.GenerateRefreshToken(payload)
	if err != nil {
		return nil, internal("failed to generate refresh token", err)
	}

	now := m.now()
	record := &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: utils.HashToken(refreshToken),
		ExpiresAt: now.Add(m.jwt.RefreshTokenTTL()),
		CreatedAt: now,
	}

	client := audit.ClientFromContext(ctx)
	if client.UserAgent != "" {
		record.UserAgent = &client.UserAgent
	}
	if client.IPAddress != "" {
		record.IPAddress = &client.IPAddress
	}

	if err := m.tokens.Create(ctx, record); err != nil {
		return nil, internal("failed to store refresh token", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    m.jwt.AccessTokenExpiry(),
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself is not rotated and the access token carries the payload that
// was signed into the refresh token.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (*domain.AccessToken, error) {
	claims, err := m.jwt.VerifyRefreshToken(refreshToken)
	if err != nil {
		m.metrics.refresh(ctx, "invalid")
		return nil, invalidRefreshToken()
	}

	record, err := m.tokens.GetByTokenHash(ctx, utils.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.metrics.refresh(ctx, "unknown")
			return nil, invalidRefreshToken()
		}
		return nil, internal("failed to look up refresh token", err)
	}

	if !record.IsUsable(m.now()) || record.UserID != claims.UserID {
		m.metrics.refresh(ctx, "revoked")
		return nil, invalidRefreshToken()
	}

	accessToken, err := m.jwt.GenerateAccessToken(claims.TokenPayload)
	if err != nil {
		return nil, internal("failed to generate access token", err)
	}

	m.metrics.refresh(ctx, "success")
	return &domain.AccessToken{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   m.jwt.AccessTokenExpiry(),
	}, nil
}

// Revoke marks a single refresh token as revoked. Unknown or already revoked tokens are ignored.
func (m *SessionManager) Revoke(ctx context.Context, refreshToken string) error {
	revoked, err := m.tokens.Revoke(ctx, utils.HashToken(refreshToken), m.now())
	if err != nil {
		return internal("failed to revoke refresh token", err)
	}
	if revoked {
		m.metrics.revoked(ctx, reasonLogout, 1)
	}
	return nil
}

// RevokeAll revokes every refresh token of userID and returns how many were live
func (m *SessionManager) RevokeAll(ctx context.Context, userID, reason string) (int64, error) {
	n, err := m.tokens.RevokeAllForUser(ctx, userID, m.now())
	if err != nil {
		return 0, internal("failed to revoke sessions", err)
	}

	m.metrics.revoked(ctx, reason, n)
	m.logger.Info("Revoked user sessions",
		zap.String("user_id", userID),
		zap.String("reason", reason),
		zap.Int64("count", n),
	)
	return n, nil
}

// Owns reports whether refreshToken is recorded for userID
func (m *SessionManager) Owns(ctx context.Context, userID, refreshToken string) (bool, error) {
	record, err := m.tokens.GetByTokenHash(ctx, utils.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, internal("failed to look up refresh token", err)
	}
	return record.UserID == userID, nil
}

// Active lists the usable refresh tokens of userID, newest first
func (m *SessionManager) Active(ctx context.Context, userID string) ([]*domain.RefreshToken, error) {
	tokens, err := m.tokens.GetActiveByUserID(ctx, userID, m.now())
	if err != nil {
		return nil, internal("failed to list sessions", err)
	}
	return tokens, nil
}

// Purge deletes every refresh token row of userID
func (m *SessionManager) Purge(ctx context.Context, userID string) error {
	if _, err := m.tokens.DeleteByUserID(ctx, userID); err != nil {
		return internal("failed to delete refresh tokens", err)
	}
	return nil
}
