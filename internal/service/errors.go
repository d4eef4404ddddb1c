package service

import (
	"github.com/prperemyshlev/aths/internal/apperrors"
	"github.com/prperemyshlev/aths/internal/utils"
)

// Client-facing messages
const (
	MsgInvalidCredentials   = "Invalid email or password"
	MsgAccountDeactivated   = "Account is deactivated. Please contact support."
	MsgInvalidAccessToken   = "Invalid or expired token"
	MsgInvalidRefreshToken  = "Invalid or expired refresh token"
	MsgEmailTaken           = "An account with this email already exists"
	MsgUserNotFound         = "User not found"
	MsgPasswordResetSent    = "If an account with that email exists, a password reset link has been sent."
	MsgInvalidResetToken    = "Invalid or expired password reset token"
	MsgPasswordUnchanged    = "New password must be different from the current password"
	MsgWrongCurrentPassword = "Current password is incorrect"
	MsgAlreadyVerified      = "Email is already verified"
	MsgInvalidVerification  = "Invalid or expired verification token"
	MsgLastAdministrator    = "Cannot remove the last active administrator"
	MsgCannotDeleteSelf     = "You cannot delete your own account"
	MsgInvalidRole          = "Role must be one of: customer, administrator"
	MsgValidationFailed     = "Validation failed"
	MsgFullNameRequired     = "Full name is required"
	MsgFullNameTooLong      = "Full name must be at most 100 characters"
	MsgInvalidEmail         = "Invalid email format"
)

const maxFullNameLength = 100

func invalidCredentials() error {
	return apperrors.Unauthorized(MsgInvalidCredentials, apperrors.Field("credentials", MsgInvalidCredentials))
}

func invalidAccessToken() error {
	return apperrors.Unauthorized(MsgInvalidAccessToken, apperrors.Field("token", MsgInvalidAccessToken))
}

func invalidRefreshToken() error {
	return apperrors.Unauthorized(MsgInvalidRefreshToken, apperrors.Field("refreshToken", MsgInvalidRefreshToken))
}

func accountDeactivated() error {
	return apperrors.Forbidden(MsgAccountDeactivated, apperrors.Field("account", MsgAccountDeactivated))
}

func invalidResetToken() error {
	return apperrors.Validation(MsgInvalidResetToken, apperrors.Field("token", MsgInvalidResetToken))
}

func invalidVerification() error {
	return apperrors.Validation(MsgInvalidVerification, apperrors.Field("token", MsgInvalidVerification))
}

func passwordUnchanged() error {
	return apperrors.Validation(MsgPasswordUnchanged, apperrors.Field("newPassword", MsgPasswordUnchanged))
}

func lastAdministrator() error {
	return apperrors.Validation(MsgLastAdministrator, apperrors.Field("role", MsgLastAdministrator))
}

func emailTaken() error {
	return apperrors.Conflict(MsgEmailTaken, apperrors.Field("email", MsgEmailTaken))
}

func userNotFound() error {
	return apperrors.NotFound(MsgUserNotFound, apperrors.Field("userId", MsgUserNotFound))
}

func passwordPolicyField(field string) apperrors.FieldError {
	return apperrors.Field(field, utils.PasswordPolicyMessage)
}

func internal(message string, err error) error {
	return apperrors.Internal(message, err)
}
