package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/dto"
	"github.com/prperemyshlev/aths/internal/service"
)

// AdminHandler serves administrator account management. Routes must be
// guarded by AuthMiddleware and RequireRole(domain.RoleAdministrator).
type AdminHandler struct {
	accounts service.AccountService
	errs     *ErrorResponder
}

func NewAdminHandler(accounts service.AccountService, errs *ErrorResponder) *AdminHandler {
	return &AdminHandler{accounts: accounts, errs: errs}
}

// ChangeRole handles role changes
// @Summary Change user role
// @Description Revokes every session of the target user
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body dto.ChangeRoleRequest true "New role"
// @Success 200 {object} dto.UserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/users/{id}/role [patch]
func (h *AdminHandler) ChangeRole(c *gin.Context) {
	actorID, ok := requireUserID(c, h.errs)
	if !ok {
		return
	}

	var req dto.ChangeRoleRequest
	if err := bindJSON(c, &req); err != nil {
		h.errs.Respond(c, err)
		return
	}

	user, err := h.accounts.ChangeRole(c.Request.Context(), actorID, c.Param("id"), domain.Role(req.Role))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// SetStatus handles account activation and deactivation
// @Summary Activate or deactivate a user
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body dto.SetStatusRequest true "Desired status"
// @Success 200 {object} dto.UserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/users/{id}/status [patch]
func (h *AdminHandler) SetStatus(c *gin.Context) {
	actorID, ok := requireUserID(c, h.errs)
	if !ok {
		return
	}

	var req dto.SetStatusRequest
	if err := bindJSON(c, &req); err != nil {
		h.errs.Respond(c, err)
		return
	}

	user, err := h.accounts.SetActive(c.Request.Context(), actorID, c.Param("id"), *req.IsActive)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// DeleteUser handles permanent account deletion
// @Summary Delete a user
// @Description Permanently removes the user with its sessions and reset tokens
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actorID, ok := requireUserID(c, h.errs)
	if !ok {
		return
	}

	if err := h.accounts.DeleteUser(c.Request.Context(), actorID, c.Param("id")); err != nil {
		h.errs.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "User deleted",
	})
}
