package credentials

import (
	"errors"
	"net/http"

	"github.com/atelier-run/atelier/internal/workflows"
	"github.com/atelier-run/atelier/pkg/vault"
)

// Domain errors for credential operations.
var (
	ErrNotFound       = errors.New("credential not found")
	ErrDuplicate      = errors.New("credential already exists for service and username")
	ErrMissingService = errors.New("credential service is required")
	ErrMissingSecret  = errors.New("credential secret is required")
)

// MapHTTPStatus translates credential errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrMissingService),
		errors.Is(err, ErrMissingSecret):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrInvalidCiphertext):
		return http.StatusInternalServerError
	case errors.Is(err, workflows.ErrNotFound),
		errors.Is(err, workflows.ErrAccessDenied):
		return workflows.MapHTTPStatus(err)
	default:
		return http.StatusInternalServerError
	}
}
