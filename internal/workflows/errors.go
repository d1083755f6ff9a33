package workflows

import (
	"errors"
	"net/http"
)

// Domain errors for workflow operations.
var (
	ErrNotFound         = errors.New("workflow not found")
	ErrDuplicate        = errors.New("workflow name already exists in project")
	ErrAccessDenied     = errors.New("workflow access denied")
	ErrNotDispatchable  = errors.New("workflow is not dispatchable")
	ErrInvalidStatus    = errors.New("invalid workflow status")
	ErrMissingName      = errors.New("workflow name is required")
	ErrMissingPrompt    = errors.New("workflow master prompt is required")
	ErrDefaultImmutable = errors.New("default workflows cannot be modified directly")
)

// MapHTTPStatus translates workflow errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotDispatchable),
		errors.Is(err, ErrDefaultImmutable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrMissingName),
		errors.Is(err, ErrMissingPrompt):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
