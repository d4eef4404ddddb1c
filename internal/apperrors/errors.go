// Package apperrors defines the error taxonomy surfaced to API clients.
package apperrors

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the transport boundary
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindUnauthorized:
		return "authentication_error"
	case KindForbidden:
		return "authorization_error"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal_error"
	}
}

// FieldError tags a message with the input field it concerns
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified, client-presentable error
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithCause attaches the underlying error without changing what clients see
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func newError(kind Kind, message string, fields []FieldError) *Error {
	return &Error{Kind: kind, Message: message, Fields: fields}
}

// Field builds a single FieldError
func Field(field, message string) FieldError {
	return FieldError{Field: field, Message: message}
}

func Validation(message string, fields ...FieldError) *Error {
	return newError(KindValidation, message, fields)
}

func Unauthorized(message string, fields ...FieldError) *Error {
	return newError(KindUnauthorized, message, fields)
}

func Forbidden(message string, fields ...FieldError) *Error {
	return newError(KindForbidden, message, fields)
}

func NotFound(message string, fields ...FieldError) *Error {
	return newError(KindNotFound, message, fields)
}

func Conflict(message string, fields ...FieldError) *Error {
	return newError(KindConflict, message, fields)
}

// Internal wraps an unexpected failure. The message is never shown to clients.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// HTTPStatus maps a Kind to its response status code
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
