package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/dto"
	"github.com/prperemyshlev/aths/internal/repository"
	"github.com/prperemyshlev/aths/internal/repository/memory"
	"github.com/prperemyshlev/aths/internal/service"
	"github.com/prperemyshlev/aths/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "test-secret-key-that-is-at-least-32-characters-long"
	testPassword = "Passw0rd!"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	repos    *repository.Repositories
	services *service.Services
}

func newRouter(services *service.Services, errs *ErrorResponder) *gin.Engine {
	authHandler := NewAuthHandler(services.Auth, services.Account, errs)
	recoveryHandler := NewRecoveryHandler(services.Recovery, errs)
	adminHandler := NewAdminHandler(services.Account, errs)
	requireAuth := AuthMiddleware(services.Auth, errs)

	router := gin.New()
	router.Use(ClientContextMiddleware())

	auth := router.Group("/api/v1/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", requireAuth, authHandler.Logout)
	auth.GET("/me", requireAuth, authHandler.GetMe)
	auth.PATCH("/me", requireAuth, authHandler.UpdateMe)
	auth.DELETE("/me", requireAuth, authHandler.DeleteMe)
	auth.PUT("/me/password", requireAuth, authHandler.ChangePassword)
	auth.GET("/sessions", requireAuth, authHandler.ListSessions)
	auth.POST("/password/forgot", recoveryHandler.ForgotPassword)
	auth.POST("/password/reset", recoveryHandler.ResetPassword)
	auth.POST("/email/verification", requireAuth, recoveryHandler.SendVerificationEmail)
	auth.POST("/email/verify", recoveryHandler.VerifyEmail)

	admin := router.Group("/api/v1/admin", requireAuth, RequireRole(domain.RoleAdministrator, errs))
	admin.PATCH("/users/:id/role", adminHandler.ChangeRole)
	admin.PATCH("/users/:id/status", adminHandler.SetStatus)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)

	return router
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	jwtManager, err := utils.NewJWTManager(utils.JWTConfig{
		Secret:     testSecret,
		Issuer:     "aths",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, time.Now)
	require.NoError(t, err)

	repos := memory.NewRepositories()
	services := service.New(service.Dependencies{
		Repositories: repos,
		JWT:          jwtManager,
		Hasher:       utils.NewPasswordHasher(bcrypt.MinCost),
	})

	return &testServer{
		router:   newRouter(services, NewErrorResponder(nil, false)),
		repos:    repos,
		services: services,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, email string) dto.AuthResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": testPassword,
		"fullName": "Ada Lovelace",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.AuthResponse](t, w)
}

func (s *testServer) promote(t *testing.T, userID string) {
	t.Helper()
	user, err := s.repos.User.GetByID(context.Background(), userID)
	require.NoError(t, err)
	user.Role = domain.RoleAdministrator
	require.NoError(t, s.repos.User.Update(context.Background(), user))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRegisterEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp := s.register(t, "a@x.com")
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 1800, resp.ExpiresIn)
	assert.Equal(t, "a@x.com", resp.User.Email)
	assert.Equal(t, "customer", resp.User.Role)

	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "A@x.com",
		"password": testPassword,
		"fullName": "Ada Lovelace",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", decode[dto.ErrorResponse](t, w).Error)
}

func TestResponsesNeverContainPasswordHash(t *testing.T) {
	s := newTestServer(t)
	resp := s.register(t, "a@x.com")

	w := s.do(t, http.MethodGet, "/api/v1/auth/me", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "$2a$")
}

func TestValidationErrorsUseJSONFieldNames(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[dto.ErrorResponse](t, w)
	assert.Equal(t, "validation_error", body.Error)
	assert.Equal(t, service.MsgValidationFailed, body.Message)

	fields := map[string]string{}
	for _, f := range body.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, service.MsgInvalidEmail, fields["email"])
	assert.Equal(t, "password must be at least 8 characters", fields["password"])
	assert.Equal(t, "fullName is required", fields["fullName"])
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgMalformedBody, decode[dto.ErrorResponse](t, w).Message)
}

func TestLoginFailuresLookIdentical(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com")

	wrong := s.do(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: "a@x.com", Password: "Wrong0ne!"})
	unknown := s.do(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: "ghost@x.com", Password: testPassword})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)
	resp := s.register(t, "a@x.com")

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + resp.AccessToken, status: http.StatusUnauthorized},
		{name: "no token", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "refresh token", header: "Bearer " + resp.RefreshToken, status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + resp.AccessToken, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/v1/auth/me", "", nil, "Authorization", tt.header)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestDeactivatedUserIsRejectedWithLiveToken(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@x.com")
	s.promote(t, admin.User.ID)
	b := s.register(t, "b@x.com")

	w := s.do(t, http.MethodPatch, "/api/v1/admin/users/"+b.User.ID+"/status", admin.AccessToken, map[string]bool{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[dto.UserResponse](t, w).IsActive)

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", b.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, service.MsgAccountDeactivated, decode[dto.ErrorResponse](t, w).Message)
}

func TestAdminRoutesRequireAdministrator(t *testing.T) {
	s := newTestServer(t)
	customer := s.register(t, "a@x.com")
	other := s.register(t, "b@x.com")

	w := s.do(t, http.MethodPatch, "/api/v1/admin/users/"+other.User.ID+"/role", customer.AccessToken, map[string]string{"role": "administrator"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	s.promote(t, customer.User.ID)

	w = s.do(t, http.MethodPatch, "/api/v1/admin/users/"+other.User.ID+"/role", customer.AccessToken, map[string]string{"role": "superuser"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/admin/users/"+other.User.ID+"/role", customer.AccessToken, map[string]string{"role": "administrator"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "administrator", decode[dto.UserResponse](t, w).Role)

	// the role change revoked the refresh token of the promoted user
	w = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", dto.RefreshRequest{RefreshToken: other.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/users/"+customer.User.ID, customer.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangePasswordThenRefreshOldToken(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com")

	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: "a@x.com", Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[dto.AuthResponse](t, w)

	w = s.do(t, http.MethodPut, "/api/v1/auth/me/password", login.AccessToken, dto.ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     "N3wPassword",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", dto.RefreshRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	s := newTestServer(t)
	resp := s.register(t, "a@x.com")

	w := s.do(t, http.MethodPost, "/api/v1/auth/logout", resp.AccessToken, dto.LogoutRequest{RefreshToken: resp.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// logout without a body
	w = s.do(t, http.MethodPost, "/api/v1/auth/logout", resp.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/password/forgot", "", dto.ForgotPasswordRequest{Email: "ghost@nowhere.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.MsgPasswordResetSent, decode[dto.SuccessResponse](t, w).Message)
}

func TestForgotPasswordAcceptsEveryBindableEmail(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "o'brien@example.com")

	w := s.do(t, http.MethodPost, "/api/v1/auth/password/forgot", "", dto.ForgotPasswordRequest{Email: "o'brien@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, service.MsgPasswordResetSent, decode[dto.SuccessResponse](t, w).Message)
}

func TestSessionsRecordClient(t *testing.T) {
	s := newTestServer(t)
	resp := s.register(t, "a@x.com")

	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: "a@x.com", Password: testPassword},
		"User-Agent", "aths-test/1.0")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/auth/sessions", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	sessions := decode[dto.SessionsResponse](t, w)
	require.Len(t, sessions.Sessions, 2)

	var agents []string
	for _, session := range sessions.Sessions {
		if session.UserAgent != nil {
			agents = append(agents, *session.UserAgent)
		}
	}
	assert.Contains(t, agents, "aths-test/1.0")
}

type failingAuthService struct {
	service.AuthService
}

func (failingAuthService) Login(context.Context, *dto.LoginRequest) (*dto.AuthResponse, error) {
	return nil, errors.New("connection refused")
}

func TestInternalErrorsHideDetails(t *testing.T) {
	for _, expose := range []bool{false, true} {
		errs := NewErrorResponder(nil, expose)
		router := gin.New()
		router.POST("/login", NewAuthHandler(failingAuthService{}, nil, errs).Login)

		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader([]byte(`{"email":"a@x.com","password":"x"}`)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode[dto.ErrorResponse](t, w)
		assert.Equal(t, msgInternalError, body.Message)
		if expose {
			assert.Equal(t, "connection refused", body.Details)
		} else {
			assert.Nil(t, body.Details)
		}
	}
}
