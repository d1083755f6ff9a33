package knowledge

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/internal/config"
	"github.com/atelier-run/atelier/pkg/handlers"
	"github.com/atelier-run/atelier/pkg/middleware"
	"github.com/atelier-run/atelier/pkg/pagination"
	"github.com/atelier-run/atelier/pkg/routes"
)

var errInvalidRequest = errors.New("invalid knowledge request")

// Handler provides HTTP endpoints for knowledge base operations. Every
// endpoint resolves the account scope from the verified caller identity;
// client-supplied account identifiers are never trusted.
type Handler struct {
	sys        System
	cfg        config.KnowledgeConfig
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// CreateRequest carries the client-supplied fields for a new knowledge entry.
// The account scope comes from the caller, not the body.
type CreateRequest struct {
	ThreadID      *uuid.UUID   `json:"thread_id"`
	Name          string       `json:"name"`
	Description   *string      `json:"description"`
	Content       string       `json:"content"`
	Usage         UsageContext `json:"usage_context"`
	TokenEstimate *int         `json:"token_estimate"`
}

// PackRequest identifies the thread scope and budget for a context packing
// preview. A null max_tokens packs under the configured default; zero packs
// nothing.
type PackRequest struct {
	ThreadID  *uuid.UUID `json:"thread_id"`
	MaxTokens *int       `json:"max_tokens"`
}

// PackResponse carries the packed context section, null when nothing packed.
type PackResponse struct {
	Context *string `json:"context"`
}

// NewHandler creates a Handler with the given system, config, logger, and pagination config.
func NewHandler(
	sys System,
	cfg config.KnowledgeConfig,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		cfg:        cfg,
		logger:     logger.With("handler", "knowledge"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for knowledge endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/knowledge",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "POST", Pattern: "/pack", Handler: h.Pack},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
		},
	}
}

// List returns a paginated list of the caller's knowledge entries with
// optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), caller, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single knowledge entry by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	e, err := h.sys.Find(r.Context(), id, caller)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, e)
}

// Search accepts a JSON body with pagination and filter criteria and returns
// the caller's matching entries.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), caller, req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Pack previews the packed context for the caller's scope without
// dispatching anything.
func (h *Handler) Pack(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req PackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	packed, err := h.sys.PackContext(r.Context(), Scope{AccountID: caller, ThreadID: req.ThreadID}, req.MaxTokens)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, PackResponse{Context: packed})
}

// Create inserts a new knowledge entry in the caller's account scope.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	e, err := h.sys.Create(r.Context(), CreateCommand{
		AccountID:     caller,
		ThreadID:      req.ThreadID,
		Name:          req.Name,
		Description:   req.Description,
		Content:       req.Content,
		Usage:         req.Usage,
		TokenEstimate: req.TokenEstimate,
	})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, e)
}

// Update applies a partial update to a knowledge entry.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	var cmd UpdateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	e, err := h.sys.Update(r.Context(), id, caller, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, e)
}

// Delete removes a knowledge entry.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	if err := h.sys.Delete(r.Context(), id, caller); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := middleware.CallerID(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, errInvalidRequest)
		return "", false
	}
	return caller, true
}
