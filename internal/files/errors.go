package files

import (
	"errors"
	"net/http"

	"github.com/atelier-run/atelier/internal/workflows"
)

// Domain errors for workflow file operations.
var (
	ErrNotFound        = errors.New("workflow file not found")
	ErrDuplicate       = errors.New("workflow file already exists")
	ErrFileTooLarge    = errors.New("file exceeds maximum upload size")
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidFile     = errors.New("invalid file upload")
	ErrTypeNotAllowed  = errors.New("file type not allowed")
	ErrMissingFilename = errors.New("filename is required")
)

// MapHTTPStatus translates file errors to HTTP status codes. Workflow
// ownership errors surface through here as well since every file operation
// authorizes against the parent workflow.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrTypeNotAllowed):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrEmptyFile),
		errors.Is(err, ErrInvalidFile),
		errors.Is(err, ErrMissingFilename):
		return http.StatusBadRequest
	case errors.Is(err, workflows.ErrNotFound),
		errors.Is(err, workflows.ErrAccessDenied):
		return workflows.MapHTTPStatus(err)
	default:
		return http.StatusInternalServerError
	}
}
