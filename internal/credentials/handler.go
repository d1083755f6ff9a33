package credentials

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/pkg/handlers"
	"github.com/atelier-run/atelier/pkg/middleware"
	"github.com/atelier-run/atelier/pkg/pagination"
	"github.com/atelier-run/atelier/pkg/routes"
)

var errInvalidRequest = errors.New("invalid credential request")

// Handler provides HTTP endpoints for credential operations. List and Find
// never include secret material; Reveal is the only endpoint that does.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// CreateRequest carries the client-supplied fields for storing a credential.
type CreateRequest struct {
	Service  string `json:"service"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "credentials"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for credential endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/credentials", Handler: h.List},
			{Method: "GET", Pattern: "/{id}/credentials/{credentialID}", Handler: h.Find},
			{Method: "POST", Pattern: "/{id}/credentials", Handler: h.Create},
			{Method: "PUT", Pattern: "/{id}/credentials/{credentialID}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}/credentials/{credentialID}", Handler: h.Delete},
			{Method: "POST", Pattern: "/{id}/credentials/{credentialID}/reveal", Handler: h.Reveal},
		},
	}
}

// List returns a paginated, masked list of a workflow's credentials.
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

// Find returns a single masked credential record.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	workflowID, caller, ok := h.scope(w, r)
	if !ok {
		return
	}

	credentialID, err := uuid.Parse(r.PathValue("credentialID"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	c, err := h.sys.Find(r.Context(), workflowID, credentialID, caller)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

// Create stores a new encrypted credential on a workflow.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	workflowID, caller, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	c, err := h.sys.Create(r.Context(), CreateCommand{
		WorkflowID: workflowID,
		CreatedBy:  caller,
		Service:    req.Service,
		Username:   req.Username,
		Secret:     req.Secret,
	})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, c)
}

// Update rotates a credential's secret or username.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	workflowID, caller, ok := h.scope(w, r)
	if !ok {
		return
	}

	credentialID, err := uuid.Parse(r.PathValue("credentialID"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	var cmd UpdateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	c, err := h.sys.Update(r.Context(), workflowID, credentialID, caller, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

// Delete removes a credential.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	workflowID, caller, ok := h.scope(w, r)
	if !ok {
		return
	}

	credentialID, err := uuid.Parse(r.PathValue("credentialID"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	if err := h.sys.Delete(r.Context(), workflowID, credentialID, caller); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reveal decrypts a credential for the workflow owner.
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	workflowID, caller, ok := h.scope(w, r)
	if !ok {
		return
	}

	credentialID, err := uuid.Parse(r.PathValue("credentialID"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return
	}

	d, err := h.sys.Reveal(r.Context(), workflowID, credentialID, caller)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, d)
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	workflowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRequest)
		return uuid.Nil, "", false
	}

	caller, ok := middleware.CallerID(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, errInvalidRequest)
		return uuid.Nil, "", false
	}

	return workflowID, caller, true
}
