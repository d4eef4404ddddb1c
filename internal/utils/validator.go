package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// emailRule is the same tag gin binding applies to request DTOs, so the HTTP
// layer and the services accept exactly the same addresses.
const emailRule = "required,email"

var validate = validator.New()

// PasswordPolicyMessage describes the rules enforced by ValidatePassword
const PasswordPolicyMessage = "Password must be at least 8 characters and contain an uppercase letter, a lowercase letter and a number"

// MaxPasswordBytes is the longest input bcrypt hashes without truncation
const MaxPasswordBytes = 72

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	return validate.Var(email, emailRule) == nil
}

// ValidatePassword validates a password
// Minimum 8 characters, at least one uppercase letter, one lowercase letter, one number.
// bcrypt ignores input past 72 bytes, so longer passwords are rejected.
func ValidatePassword(password string) bool {
	if len(password) < 8 || len(password) > MaxPasswordBytes {
		return false
	}

	hasUpper := false
	hasLower := false
	hasNumber := false

	for _, char := range password {
		switch {
		case 'A' <= char && char <= 'Z':
			hasUpper = true
		case 'a' <= char && char <= 'z':
			hasLower = true
		case '0' <= char && char <= '9':
			hasNumber = true
		}
	}

	return hasUpper && hasLower && hasNumber
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SanitizeName trims surrounding whitespace and collapses internal runs of spaces
func SanitizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
