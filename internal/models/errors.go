package models

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a category of orchestration failure. Codes are
// stable strings so callers can branch on them without string matching.
type ErrorCode string

const (
	ErrMissingRequiredField ErrorCode = "missing_required_field"
	ErrSessionNotFound      ErrorCode = "session_not_found"
	ErrValidationFailed     ErrorCode = "validation_failed"
	ErrInternal             ErrorCode = "internal_error"
)

// Error is the structured failure every orchestration action returns.
// The zero fields are omitted from the message; Code is always set.
type Error struct {
	Code      ErrorCode
	Message   string
	Field     string
	SessionID string
	Action    string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Field != "" {
		msg += fmt.Sprintf(" (field: %s)", e.Field)
	}
	if e.SessionID != "" {
		msg += fmt.Sprintf(" (session: %s)", e.SessionID)
	}
	if e.Action != "" {
		msg += fmt.Sprintf(" (action: %s)", e.Action)
	}
	return msg
}

// MissingField reports a required field absent from a request.
func MissingField(field string) *Error {
	return &Error{
		Code:    ErrMissingRequiredField,
		Message: "required field is missing",
		Field:   field,
	}
}

// SessionNotFound reports an operation referencing an unknown session id.
func SessionNotFound(sessionID string) *Error {
	return &Error{
		Code:      ErrSessionNotFound,
		Message:   "session not found",
		SessionID: sessionID,
	}
}

// ValidationFailed reports an invalid action name, enum value, or
// malformed input.
func ValidationFailed(action, format string, a ...any) *Error {
	return &Error{
		Code:    ErrValidationFailed,
		Message: fmt.Sprintf(format, a...),
		Action:  action,
	}
}

// InternalError wraps an unexpected failure inside a collaborator so it
// never escapes the action boundary unstructured.
func InternalError(action string, err error) *Error {
	return &Error{
		Code:    ErrInternal,
		Message: err.Error(),
		Action:  action,
	}
}

// AsError coerces any error into a structured *Error. Errors that are
// already structured pass through unchanged.
func AsError(action string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return InternalError(action, err)
}
