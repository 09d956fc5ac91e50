// Package apperror defines the error kinds shared by every layer.
//
// Repositories and services return these; only the HTTP layer turns them
// into status codes. Each kind is a sentinel so callers can match with
// errors.Is no matter how many times the error was wrapped on the way up.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrStorage           = errors.New("storage error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

type AppError struct {
	Err     error  // kind sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	cause   error  // underlying failure, kept for logs only
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind sentinel and the underlying cause, so
// errors.Is(err, ErrStorage) and errors.Is(err, context.Canceled) both work.
func (e *AppError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// IllegalTransition reports a status change the state graph does not allow.
// HTTP handlers map this to 409 Conflict.
func IllegalTransition(id, from, to string) *AppError {
	return &AppError{
		Err:     ErrIllegalTransition,
		Message: fmt.Sprintf("card %s cannot move from %s to %s", id, from, to),
	}
}

// InvalidOperation reports a mutation that is well-formed but not allowed
// through the path it was attempted on.
func InvalidOperation(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidOperation,
		Message: message,
		Field:   field,
	}
}

// StorageFailed wraps a backing-store failure. The cause is kept for logging
// but never shown to API clients.
func StorageFailed(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Message: "storage: " + op,
		cause:   cause,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Kind returns the wire name of err's kind, e.g. "NotFoundError".
// Errors that carry no known kind are reported as "InternalError".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrNotFound):
		return "NotFoundError"
	case errors.Is(err, ErrIllegalTransition):
		return "IllegalTransitionError"
	case errors.Is(err, ErrInvalidOperation):
		return "InvalidOperationError"
	case errors.Is(err, ErrStorage):
		return "StorageError"
	case errors.Is(err, ErrUnauthorized):
		return "UnauthorizedError"
	case errors.Is(err, ErrForbidden):
		return "ForbiddenError"
	default:
		return "InternalError"
	}
}
