package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/aths/internal/apperrors"
	"github.com/prperemyshlev/aths/internal/audit"
	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/service"
)

// Gin context keys set by AuthMiddleware
const (
	ContextUserKey   = "user"
	ContextUserIDKey = "user_id"
)

const (
	msgMissingAuthHeader = "Authorization header is required"
	msgBadAuthHeader     = "Invalid authorization header format"
	msgInsufficientRole  = "Insufficient permissions"
)

// ClientContextMiddleware stores the caller's IP and user agent in the request context
func ClientContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithClient(c.Request.Context(), audit.Client{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuthMiddleware validates the bearer token, checks that the account is still
// active and adds the user to the context
func AuthMiddleware(authService service.AuthService, errs *ErrorResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			errs.Respond(c, apperrors.Unauthorized(msgMissingAuthHeader, apperrors.Field("authorization", msgMissingAuthHeader)))
			return
		}

		// Extract token from "Bearer <token>"
		scheme, token, ok := strings.Cut(authHeader, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			errs.Respond(c, apperrors.Unauthorized(msgBadAuthHeader, apperrors.Field("authorization", msgBadAuthHeader)))
			return
		}

		user, err := authService.VerifyAccess(c.Request.Context(), token)
		if err != nil {
			errs.Respond(c, err)
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)

		c.Next()
	}
}

// RequireRole rejects authenticated users without role. It must run after AuthMiddleware.
func RequireRole(role domain.Role, errs *ErrorResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			errs.Respond(c, apperrors.Unauthorized(msgMissingAuthHeader))
			return
		}
		if user.Role != role {
			errs.Respond(c, apperrors.Forbidden(msgInsufficientRole, apperrors.Field("role", msgInsufficientRole)))
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (*domain.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*domain.User)
	return user, ok
}
