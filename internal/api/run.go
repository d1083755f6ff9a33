package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/internal/assembly"
	"github.com/atelier-run/atelier/internal/files"
	"github.com/atelier-run/atelier/internal/sandbox"
	"github.com/atelier-run/atelier/internal/workflows"
	"github.com/atelier-run/atelier/pkg/handlers"
	"github.com/atelier-run/atelier/pkg/middleware"
	"github.com/atelier-run/atelier/pkg/routes"
)

var errInvalidRun = errors.New("invalid run request")

// runHandler exposes assemble-and-dispatch as a single endpoint: it builds
// the execution context for a workflow and hands it to the sandbox,
// returning the run handle for the caller to follow.
type runHandler struct {
	assembler     assembly.System
	dispatcher    *sandbox.Dispatcher
	logger        *slog.Logger
	maxUploadSize int64
}

type runRequest struct {
	AdditionalInstructions string     `json:"additional_instructions"`
	ThreadID               *uuid.UUID `json:"thread_id"`
	IncludeKnowledge       bool       `json:"include_knowledge"`
}

func newRunHandler(
	assembler assembly.System,
	dispatcher *sandbox.Dispatcher,
	logger *slog.Logger,
	maxUploadSize int64,
) *runHandler {
	return &runHandler{
		assembler:     assembler,
		dispatcher:    dispatcher,
		logger:        logger.With("handler", "runs"),
		maxUploadSize: maxUploadSize,
	}
}

func (h *runHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/workflows",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/execute", Handler: h.execute},
		},
	}
}

// execute assembles a workflow's execution context, merging any run-time
// overrides, dispatches it, and responds 202 with the run handle. Run
// overrides are never persisted; the stored workflow is unchanged afterwards.
func (h *runHandler) execute(w http.ResponseWriter, r *http.Request) {
	workflowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidRun)
		return
	}

	caller, ok := middleware.CallerID(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, errInvalidRun)
		return
	}

	overrides, err := h.parseOverrides(r)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, errInvalidRun) {
			status = files.MapHTTPStatus(err)
		}
		handlers.RespondError(w, h.logger, status, err)
		return
	}

	ec, err := h.assembler.Assemble(r.Context(), workflowID, caller, *overrides)
	if err != nil {
		handlers.RespondError(w, h.logger, assembleStatus(err), err)
		return
	}

	handle, err := h.dispatcher.Dispatch(r.Context(), ec)
	if err != nil {
		handlers.RespondError(w, h.logger, sandbox.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, handle)
}

// parseOverrides accepts either a JSON body or a multipart form carrying
// run-time files alongside the override fields.
func (h *runHandler) parseOverrides(r *http.Request) (*assembly.RunOverrides, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		var req runRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, errInvalidRun
			}
		}
		return &assembly.RunOverrides{
			AdditionalInstructions: req.AdditionalInstructions,
			ThreadID:               req.ThreadID,
			IncludeKnowledge:       req.IncludeKnowledge,
		}, nil
	}

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return nil, files.ErrFileTooLarge
	}

	overrides := &assembly.RunOverrides{
		AdditionalInstructions: r.FormValue("additional_instructions"),
	}

	if t := r.FormValue("thread_id"); t != "" {
		id, err := uuid.Parse(t)
		if err != nil {
			return nil, errInvalidRun
		}
		overrides.ThreadID = &id
	}

	if k := r.FormValue("include_knowledge"); k != "" {
		include, err := strconv.ParseBool(k)
		if err != nil {
			return nil, errInvalidRun
		}
		overrides.IncludeKnowledge = include
	}

	if r.MultipartForm == nil {
		return overrides, nil
	}

	for _, header := range r.MultipartForm.File["files"] {
		contentType := strings.TrimSpace(header.Header.Get("Content-Type"))

		if err := files.Validate(header.Filename, contentType, header.Size, h.maxUploadSize); err != nil {
			return nil, err
		}

		f, err := header.Open()
		if err != nil {
			return nil, errInvalidRun
		}

		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errInvalidRun
		}

		overrides.RunFiles = append(overrides.RunFiles, assembly.TransferFile{
			Name:        header.Filename,
			ContentType: contentType,
			Data:        data,
		})
	}

	return overrides, nil
}

func assembleStatus(err error) int {
	if status := workflows.MapHTTPStatus(err); status != http.StatusInternalServerError {
		return status
	}
	return files.MapHTTPStatus(err)
}
