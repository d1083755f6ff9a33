package workflows

import (
	"context"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/pkg/pagination"
)

// System defines the public contract for workflow domain operations.
type System interface {
	Handler(copier *Copier) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Workflow], error)

	Find(ctx context.Context, id uuid.UUID) (*Workflow, error)

	// FindOwned returns the workflow only when the caller owns it or it is a
	// default template. It returns ErrAccessDenied otherwise.
	FindOwned(ctx context.Context, id uuid.UUID, callerID string) (*Workflow, error)

	// Authorize verifies the caller may read the workflow and its attachments.
	Authorize(ctx context.Context, id uuid.UUID, callerID string) error

	// FindDispatchable returns the workflow when it is owned by the caller,
	// is not a default template, and is in a dispatchable state.
	FindDispatchable(ctx context.Context, id uuid.UUID, callerID string) (*Workflow, error)

	Create(ctx context.Context, cmd CreateCommand) (*Workflow, error)
	Update(ctx context.Context, id uuid.UUID, callerID string, cmd UpdateCommand) (*Workflow, error)
	Delete(ctx context.Context, id uuid.UUID, callerID string) error
	SetDefault(ctx context.Context, id uuid.UUID, isDefault bool) (*Workflow, error)

	// UniqueName returns a project-unique workflow name derived from base,
	// appending a numeric suffix when the base is already taken.
	UniqueName(ctx context.Context, projectID uuid.UUID, base string) (string, error)
}
