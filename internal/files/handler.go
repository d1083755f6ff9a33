package files

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/atelier-run/atelier/pkg/handlers"
	"github.com/atelier-run/atelier/pkg/middleware"
	"github.com/atelier-run/atelier/pkg/pagination"
	"github.com/atelier-run/atelier/pkg/routes"
)

// Handler provides HTTP endpoints for workflow file operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// NewHandler creates a Handler with the given system, logger, pagination config, and upload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "files"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for workflow file endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/files", Handler: h.List},
			{Method: "GET", Pattern: "/{id}/files/{fileID}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/files/{fileID}/content", Handler: h.Download},
			{Method: "POST", Pattern: "/{id}/files", Handler: h.Upload},
			{Method: "DELETE", Pattern: "/{id}/files/{fileID}", Handler: h.Delete},
		},
	}
}

// List returns a paginated list of a workflow's files.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	workflowID, caller, ok := h.scope(w, r)
	if !ok {
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), workflowID, caller, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single file record.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	workflowID, caller, ok := h.scope(w, r)
	if !ok {
		return
	}

	fileID, err := uuid.Parse(r.PathValue("fileID"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}

	f, err := h.sys.Find(r.Context(), workflowID, fileID, caller)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, f)
}

// Download streams the file's blob content.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	workflowID, caller, ok := h.scope(w, r)
	if !ok {
		return
	}

	fileID, err := uuid.Parse(r.PathValue("fileID"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}

	f, rc, err := h.sys.Download(r.Context(), workflowID, fileID, caller)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("file stream interrupted", "file", f.ID, "error", err)
	}
}

// Upload validates and attaches a multipart file upload to a workflow.
// Extracts PDF page count automatically for PDF files using pdfcpu.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	workflowID, caller, ok := h.scope(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))

	if err := Validate(header.Filename, contentType, int64(len(data)), h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	cmd := CreateCommand{
		WorkflowID:  workflowID,
		CreatedBy:   caller,
		Filename:    header.Filename,
		ContentType: contentType,
		PageCount:   extractPDFPageCount(h.logger, data, contentType),
		Data:        data,
	}

	f, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, f)
}

// Delete removes a file record and its blob.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	workflowID, caller, ok := h.scope(w, r)
	if !ok {
		return
	}

	fileID, err := uuid.Parse(r.PathValue("fileID"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return
	}

	if err := h.sys.Delete(r.Context(), workflowID, fileID, caller); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	workflowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidFile)
		return uuid.Nil, "", false
	}

	caller, ok := middleware.CallerID(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, ErrInvalidFile)
		return uuid.Nil, "", false
	}

	return workflowID, caller, true
}

func extractPDFPageCount(logger *slog.Logger, data []byte, contentType string) *int {
	if normalizeContentType(contentType) != "application/pdf" {
		return nil
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		logger.Warn("failed to extract PDF page count", "error", err)
		return nil
	}

	return &count
}
