package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prperemyshlev/aths/internal/domain"
)

// ErrInvalidOrExpired is returned for any token that fails verification
var ErrInvalidOrExpired = errors.New("token is invalid or expired")

// JWTConfig holds signing parameters for JWTManager
type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// JWTManager manages JWT token operations
type JWTManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

type tokenClaims struct {
	UserID  string      `json:"userId"`
	Email   string      `json:"email"`
	Role    domain.Role `json:"role"`
	TokenID string      `json:"tokenId,omitempty"`
	Type    string      `json:"typ"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a new JWT manager. A nil clock means time.Now.
func NewJWTManager(cfg JWTConfig, clock func() time.Time) (*JWTManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt token lifetimes must be positive")
	}
	if clock == nil {
		clock = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(clock),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	return &JWTManager{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        clock,
		parser:     jwt.NewParser(options...),
	}, nil
}

// GenerateAccessToken generates a new access token
func (j *JWTManager) GenerateAccessToken(payload domain.TokenPayload) (string, error) {
	claims := j.newClaims(payload, domain.TokenTypeAccess, j.accessTTL)

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// GenerateRefreshToken generates a new refresh token carrying a unique token ID
func (j *JWTManager) GenerateRefreshToken(payload domain.TokenPayload) (string, error) {
	claims := j.newClaims(payload, domain.TokenTypeRefresh, j.refreshTTL)
	claims.TokenID = uuid.NewString()

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return tokenString, nil
}

// VerifyToken checks signature, algorithm, issuer and expiry. It never consults storage.
func (j *JWTManager) VerifyToken(tokenString string) (*domain.TokenClaims, error) {
	var claims tokenClaims

	token, err := j.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrExpired, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidOrExpired
	}

	out := &domain.TokenClaims{
		TokenPayload: domain.TokenPayload{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		},
		TokenID: claims.TokenID,
		Type:    claims.Type,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Unix()
	}

	return out, nil
}

// VerifyAccessToken verifies tokenString and requires it to be an access token
func (j *JWTManager) VerifyAccessToken(tokenString string) (*domain.TokenClaims, error) {
	return j.verifyType(tokenString, domain.TokenTypeAccess)
}

// VerifyRefreshToken verifies tokenString and requires it to be a refresh token
func (j *JWTManager) VerifyRefreshToken(tokenString string) (*domain.TokenClaims, error) {
	claims, err := j.verifyType(tokenString, domain.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.TokenID == "" {
		return nil, ErrInvalidOrExpired
	}
	return claims, nil
}

// AccessTokenExpiry returns the access token lifetime in seconds
func (j *JWTManager) AccessTokenExpiry() int {
	return int(j.accessTTL.Seconds())
}

// RefreshTokenTTL returns the refresh token lifetime
func (j *JWTManager) RefreshTokenTTL() time.Duration {
	return j.refreshTTL
}

func (j *JWTManager) verifyType(tokenString, typ string) (*domain.TokenClaims, error) {
	claims, err := j.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalidOrExpired, claims.Type)
	}
	return claims, nil
}

func (j *JWTManager) newClaims(payload domain.TokenPayload, typ string, ttl time.Duration) tokenClaims {
	now := j.now()
	return tokenClaims{
		UserID: payload.UserID,
		Email:  payload.Email,
		Role:   payload.Role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   payload.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}
