package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/aths/internal/apperrors"
	"github.com/prperemyshlev/aths/internal/dto"
	"go.uber.org/zap"
)

const msgInternalError = "Internal server error"

// ErrorResponder maps service errors to JSON responses
type ErrorResponder struct {
	logger        *zap.Logger
	exposeDetails bool
}

// NewErrorResponder creates a responder. With exposeDetails the cause of an
// internal error is returned to the client in the details field.
func NewErrorResponder(logger *zap.Logger, exposeDetails bool) *ErrorResponder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorResponder{logger: logger, exposeDetails: exposeDetails}
}

// Respond writes err and aborts the handler chain
func (r *ErrorResponder) Respond(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)

	if kind == apperrors.KindInternal {
		r.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)

		response := dto.ErrorResponse{
			Error:   kind.String(),
			Message: msgInternalError,
		}
		if r.exposeDetails {
			response.Details = err.Error()
		}
		c.AbortWithStatusJSON(status, response)
		return
	}

	var appErr *apperrors.Error
	errors.As(err, &appErr)

	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   kind.String(),
		Message: appErr.Message,
		Fields:  appErr.Fields,
	})
}
