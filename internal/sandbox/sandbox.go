// Package sandbox dispatches assembled execution contexts into isolated
// execution environments. The environments themselves belong to an external
// collaborator; this package only ensures one exists for the owner, transfers
// the context's files into it, and starts the run.
package sandbox

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// Domain errors for sandbox operations.
var (
	ErrUnavailable = errors.New("sandbox collaborator unavailable")
	ErrTransfer    = errors.New("sandbox file transfer failed")
)

// MapHTTPStatus translates sandbox errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrTransfer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Environment is an opaque reference to an owner-labeled isolated
// environment. Environments are never shared across owners; the owner
// identity always travels with the reference so the collaborator can enforce
// that upstream.
type Environment struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
}

// RunHandle identifies a started run for the caller to follow through the
// external collaborator.
type RunHandle struct {
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
}

// Collaborator is the narrow contract consumed from the external isolated
// execution service.
type Collaborator interface {
	// EnsureEnvironment returns an existing environment for the owner or
	// creates one. The call is idempotent per owner on the collaborator side.
	EnsureEnvironment(ctx context.Context, ownerID string) (*Environment, error)

	// TransferFile streams a file into the environment at the given path
	// relative to the environment root.
	TransferFile(ctx context.Context, env *Environment, relPath string, r io.Reader) error

	// StartRun launches an execution with the given prompt and returns its
	// handle immediately; result streaming belongs to the collaborator.
	StartRun(ctx context.Context, env *Environment, prompt string) (*RunHandle, error)
}
