// Package apperr defines the error taxonomy shared by all domain services.
// Services return these sentinels (usually wrapped with context via fmt.Errorf
// and %w); handlers translate them to HTTP status codes at the boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotFound          = errors.New("not found")
	ErrSlotConflict      = errors.New("slot conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrValidation        = errors.New("validation error")
	ErrDuplicate         = errors.New("duplicate resource")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// HTTPStatus maps a domain error to the HTTP status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSlotConflict), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
