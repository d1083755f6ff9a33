package credentials

import (
	"context"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/internal/workflows"
	"github.com/atelier-run/atelier/pkg/pagination"
)

// WorkflowGate authorizes credential operations against the parent workflow.
// The workflow domain's System satisfies it.
type WorkflowGate interface {
	Authorize(ctx context.Context, id uuid.UUID, callerID string) error
	FindOwned(ctx context.Context, id uuid.UUID, callerID string) (*workflows.Workflow, error)
}

// System defines the public contract for credential operations. Secrets stay
// encrypted at rest; only Reveal and Decrypted produce plaintext, and both
// run ownership checks or are reserved for internal assembly.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		workflowID uuid.UUID,
		callerID string,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Credential], error)

	Find(ctx context.Context, workflowID, credentialID uuid.UUID, callerID string) (*Credential, error)
	Create(ctx context.Context, cmd CreateCommand) (*Credential, error)
	Update(ctx context.Context, workflowID, credentialID uuid.UUID, callerID string, cmd UpdateCommand) (*Credential, error)
	Delete(ctx context.Context, workflowID, credentialID uuid.UUID, callerID string) error

	// Reveal decrypts a single credential for its workflow owner.
	Reveal(ctx context.Context, workflowID, credentialID uuid.UUID, callerID string) (*Decrypted, error)

	// Decrypted returns every credential of a workflow in plaintext, ordered
	// by service. Callers authorize the workflow before using it.
	Decrypted(ctx context.Context, workflowID uuid.UUID) ([]Decrypted, error)

	// CopyAll duplicates every credential from one workflow to another,
	// decrypting and re-encrypting each secret into an independent row.
	CopyAll(ctx context.Context, sourceID, targetID uuid.UUID) (int, error)
}
