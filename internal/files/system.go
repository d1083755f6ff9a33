package files

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/internal/workflows"
	"github.com/atelier-run/atelier/pkg/pagination"
)

// WorkflowGate authorizes file operations against the parent workflow.
// The workflow domain's System satisfies it.
type WorkflowGate interface {
	Authorize(ctx context.Context, id uuid.UUID, callerID string) error
	FindOwned(ctx context.Context, id uuid.UUID, callerID string) (*workflows.Workflow, error)
}

// System defines the public contract for workflow file operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		workflowID uuid.UUID,
		callerID string,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[WorkflowFile], error)

	Find(ctx context.Context, workflowID, fileID uuid.UUID, callerID string) (*WorkflowFile, error)

	// Download returns the file record and a stream of its blob content.
	// The caller must close the reader.
	Download(ctx context.Context, workflowID, fileID uuid.UUID, callerID string) (*WorkflowFile, io.ReadCloser, error)

	Create(ctx context.Context, cmd CreateCommand) (*WorkflowFile, error)
	Delete(ctx context.Context, workflowID, fileID uuid.UUID, callerID string) error

	// All returns every file attached to a workflow, newest first, without an
	// ownership check. Callers authorize the workflow before using it.
	All(ctx context.Context, workflowID uuid.UUID) ([]WorkflowFile, error)

	// Open streams the blob content for a previously loaded file record,
	// retrying once on transient storage failures.
	Open(ctx context.Context, f WorkflowFile) ([]byte, error)

	// CopyAll duplicates every file from one workflow to another with fresh
	// IDs and fresh storage objects. It returns the number copied; a partial
	// failure returns the successful count alongside the joined errors.
	CopyAll(ctx context.Context, sourceID, targetID uuid.UUID) (int, error)
}
