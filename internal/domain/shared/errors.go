package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound          = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput      = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrUnauthorized      = NewDomainError("UNAUTHORIZED", "Please log in to continue")
	ErrForbidden         = NewDomainError("FORBIDDEN", "Admin access required")
	ErrInvalidState      = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientStock = NewDomainError("INSUFFICIENT_STOCK", "Some items exceed available stock")
	ErrInProgress        = NewDomainError("IN_PROGRESS", "Another request for this action is still running")
	ErrRemote            = NewDomainError("REMOTE_ERROR", "Something went wrong. Please try again.")
	ErrUnknownUser       = NewDomainError("INVALID_STATE", "Your account details are still loading. Please reload your profile and try again.")
)

// MessageOf returns the user-facing message of err: the domain message when err
// is (or wraps) a DomainError, otherwise fallback.
func MessageOf(err error, fallback string) string {
	var de *DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return fallback
}

// FieldError is an inline form error for one field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the inline errors of a rejected form
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "Request validation failed"
	}
	return e.Fields[0].Field + ": " + e.Fields[0].Message
}

// Unwrap lets errors.Is match ErrInvalidInput
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
