package service

import (
	"context"
	"errors"

	"github.com/prperemyshlev/aths/internal/apperrors"
	"github.com/prperemyshlev/aths/internal/audit"
	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/dto"
	"github.com/prperemyshlev/aths/internal/repository"
	"go.uber.org/zap"
)

type accountService struct {
	userRepo  repository.UserRepository
	resetRepo repository.PasswordResetRepository
	sessions  *SessionManager
	effects   sideEffects
	logger    *zap.Logger
}

func NewAccountService(deps Dependencies, sessions *SessionManager) AccountService {
	deps = deps.withDefaults()
	return &accountService{
		userRepo:  deps.Repositories.User,
		resetRepo: deps.Repositories.PasswordReset,
		sessions:  sessions,
		effects:   newSideEffects(deps),
		logger:    deps.Logger,
	}
}

// ChangeRole assigns role to the target and ends its sessions so new tokens carry the new role
func (s *accountService) ChangeRole(ctx context.Context, actorID, targetID string, role domain.Role) (*dto.UserResponse, error) {
	if !role.Valid() {
		return nil, apperrors.Validation(MsgInvalidRole, apperrors.Field("role", MsgInvalidRole))
	}

	user, err := loadUser(ctx, s.userRepo, targetID)
	if err != nil {
		return nil, err
	}

	if user.Role == role {
		response := dto.NewUserResponse(user)
		return &response, nil
	}

	if role != domain.RoleAdministrator {
		if err := s.ensureNotLastAdministrator(ctx, user); err != nil {
			return nil, err
		}
	}

	previous := user.Role
	user.Role = role
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, internal("failed to update role", err)
	}

	if _, err := s.sessions.RevokeAll(ctx, user.ID, reasonRoleChange); err != nil {
		return nil, err
	}

	s.effects.record(ctx, audit.Event{
		UserID:  user.ID,
		Action:  audit.ActionRoleChanged,
		Details: "Role changed",
		Metadata: map[string]string{
			"from":    string(previous),
			"to":      string(role),
			"actorId": actorID,
		},
	})

	response := dto.NewUserResponse(user)
	return &response, nil
}

// SetActive activates or deactivates the target account
func (s *accountService) SetActive(ctx context.Context, actorID, targetID string, active bool) (*dto.UserResponse, error) {
	user, err := loadUser(ctx, s.userRepo, targetID)
	if err != nil {
		return nil, err
	}

	if user.IsActive == active {
		response := dto.NewUserResponse(user)
		return &response, nil
	}

	if !active {
		if err := s.deactivate(ctx, user, actorID); err != nil {
			return nil, err
		}
		response := dto.NewUserResponse(user)
		return &response, nil
	}

	user.IsActive = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, internal("failed to activate user", err)
	}

	s.effects.record(ctx, audit.Event{
		UserID:   user.ID,
		Action:   audit.ActionAccountActivated,
		Details:  "Account activated",
		Metadata: map[string]string{"actorId": actorID},
	})

	response := dto.NewUserResponse(user)
	return &response, nil
}

// DeactivateSelf soft-deletes the caller's own account
func (s *accountService) DeactivateSelf(ctx context.Context, userID string) error {
	user, err := loadUser(ctx, s.userRepo, userID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}
	return s.deactivate(ctx, user, userID)
}

func (s *accountService) deactivate(ctx context.Context, user *domain.User, actorID string) error {
	if err := s.ensureNotLastAdministrator(ctx, user); err != nil {
		return err
	}

	user.IsActive = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		return internal("failed to deactivate user", err)
	}

	if _, err := s.sessions.RevokeAll(ctx, user.ID, reasonDeactivation); err != nil {
		return err
	}

	s.effects.record(ctx, audit.Event{
		UserID:   user.ID,
		Action:   audit.ActionAccountDeactivated,
		Details:  "Account deactivated",
		Metadata: map[string]string{"actorId": actorID},
	})
	return nil
}

// DeleteUser permanently removes the target and everything recorded for it
func (s *accountService) DeleteUser(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return apperrors.Validation(MsgCannotDeleteSelf, apperrors.Field("userId", MsgCannotDeleteSelf))
	}

	user, err := loadUser(ctx, s.userRepo, targetID)
	if err != nil {
		return err
	}

	if err := s.ensureNotLastAdministrator(ctx, user); err != nil {
		return err
	}

	if _, err := s.sessions.RevokeAll(ctx, user.ID, reasonDeletion); err != nil {
		return err
	}
	if err := s.sessions.Purge(ctx, user.ID); err != nil {
		return err
	}
	if _, err := s.resetRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return internal("failed to delete reset tokens", err)
	}

	if err := s.userRepo.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return userNotFound()
		}
		return internal("failed to delete user", err)
	}

	s.effects.record(ctx, audit.Event{
		UserID:   user.ID,
		Action:   audit.ActionAccountDeleted,
		Details:  "Account deleted",
		Metadata: map[string]string{"actorId": actorID, "email": user.Email},
	})

	s.logger.Info("User deleted", zap.String("user_id", user.ID), zap.String("actor_id", actorID))
	return nil
}

// ensureNotLastAdministrator rejects changes that would leave no active administrator
func (s *accountService) ensureNotLastAdministrator(ctx context.Context, user *domain.User) error {
	if !user.IsAdmin() || !user.IsActive {
		return nil
	}

	count, err := s.userRepo.CountActiveByRole(ctx, domain.RoleAdministrator)
	if err != nil {
		return internal("failed to count administrators", err)
	}
	if count <= 1 {
		return lastAdministrator()
	}
	return nil
}
