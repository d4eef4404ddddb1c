// Package audit records security-relevant actions without blocking the caller.
package audit

import "time"

// Action names a recorded security event
type Action string

const (
	ActionRegister               Action = "REGISTER"
	ActionLogin                  Action = "LOGIN"
	ActionFailedLogin            Action = "FAILED_LOGIN"
	ActionLogout                 Action = "LOGOUT"
	ActionPasswordChange         Action = "PASSWORD_CHANGE"
	ActionPasswordResetRequested Action = "PASSWORD_RESET_REQUESTED"
	ActionPasswordReset          Action = "PASSWORD_RESET"
	ActionEmailVerified          Action = "EMAIL_VERIFIED"
	ActionAccountDeactivated     Action = "ACCOUNT_DEACTIVATED"
	ActionAccountActivated       Action = "ACCOUNT_ACTIVATED"
	ActionAccountDeleted         Action = "ACCOUNT_DELETED"
	ActionRoleChanged            Action = "ROLE_CHANGED"
)

// Status is the outcome of the audited action
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Event is a single audit record
type Event struct {
	UserID    string            `json:"userId,omitempty"`
	Action    Action            `json:"action"`
	Details   string            `json:"details,omitempty"`
	IPAddress string            `json:"ipAddress,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}
