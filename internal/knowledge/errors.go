package knowledge

import (
	"errors"
	"net/http"
)

// Domain errors for knowledge entry operations.
var (
	ErrNotFound       = errors.New("knowledge entry not found")
	ErrDuplicate      = errors.New("knowledge entry already exists")
	ErrAccessDenied   = errors.New("knowledge entry access denied")
	ErrMissingName    = errors.New("knowledge entry name is required")
	ErrMissingContent = errors.New("knowledge entry content is required")
	ErrInvalidUsage   = errors.New("invalid usage classification")
)

// MapHTTPStatus translates knowledge errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrMissingName),
		errors.Is(err, ErrMissingContent),
		errors.Is(err, ErrInvalidUsage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
