package knowledge

import (
	"context"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/pkg/pagination"
)

// System defines the public contract for knowledge base operations. The
// HTTP-facing operations take the verified caller identity and confine
// reads and writes to that caller's account scope.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		callerID string,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Entry], error)

	Find(ctx context.Context, id uuid.UUID, callerID string) (*Entry, error)
	Create(ctx context.Context, cmd CreateCommand) (*Entry, error)
	Update(ctx context.Context, id uuid.UUID, callerID string, cmd UpdateCommand) (*Entry, error)
	Delete(ctx context.Context, id uuid.UUID, callerID string) error

	// Candidates returns packing-eligible entries for the scope, most recent
	// first. Thread scopes include the account-global fallback tier.
	Candidates(ctx context.Context, scope Scope) ([]Entry, error)

	// PackContext selects candidates and packs them into a token-budgeted
	// text section. A nil budget packs under the configured default; a zero
	// or negative budget packs nothing. It returns nil when no entries fit.
	PackContext(ctx context.Context, scope Scope, maxTokens *int) (*string, error)
}
