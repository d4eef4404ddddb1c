package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/aths/internal/dto"
	"github.com/prperemyshlev/aths/internal/service"
)

// RecoveryHandler serves password reset and email verification
type RecoveryHandler struct {
	recovery service.RecoveryService
	errs     *ErrorResponder
}

func NewRecoveryHandler(recovery service.RecoveryService, errs *ErrorResponder) *RecoveryHandler {
	return &RecoveryHandler{recovery: recovery, errs: errs}
}

// ForgotPassword always answers 200 for well-formed emails, known or not
// @Summary Request a password reset
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body dto.ForgotPasswordRequest true "Account email"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /auth/password/forgot [post]
func (h *RecoveryHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		h.errs.Respond(c, err)
		return
	}

	response, err := h.recovery.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ResetPassword handles password reset with an emailed token
// @Summary Reset password
// @Description Consume a reset token and set a new password. Every session is revoked.
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/password/reset [post]
func (h *RecoveryHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		h.errs.Respond(c, err)
		return
	}

	response, err := h.recovery.ResetPassword(c.Request.Context(), &req)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SendVerificationEmail handles verification email requests
// @Summary Send email verification link
// @Tags recovery
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/email/verification [post]
func (h *RecoveryHandler) SendVerificationEmail(c *gin.Context) {
	userID, ok := requireUserID(c, h.errs)
	if !ok {
		return
	}

	response, err := h.recovery.SendVerificationEmail(c.Request.Context(), userID)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// VerifyEmail handles email verification
// @Summary Verify email address
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body dto.VerifyEmailRequest true "Verification token"
// @Success 200 {object} dto.UserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/email/verify [post]
func (h *RecoveryHandler) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	if err := bindJSON(c, &req); err != nil {
		h.errs.Respond(c, err)
		return
	}

	user, err := h.recovery.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
