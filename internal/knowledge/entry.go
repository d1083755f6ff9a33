// Package knowledge implements the knowledge base: free-form text entries
// scoped to a conversation thread or an account, and the token-budgeted
// packer that selects entries for execution context assembly.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// UsageContext classifies when an entry may be injected into context.
type UsageContext string

// Usage classifications. Only always and contextual entries are eligible for
// automatic packing; manual entries are injected explicitly by the user.
const (
	UsageAlways     UsageContext = "always"
	UsageContextual UsageContext = "contextual"
	UsageManual     UsageContext = "manual"
)

// Valid reports whether u is a known usage classification.
func (u UsageContext) Valid() bool {
	switch u {
	case UsageAlways, UsageContextual, UsageManual:
		return true
	}
	return false
}

// Packable reports whether entries with this classification participate in
// automatic context packing.
func (u UsageContext) Packable() bool {
	return u == UsageAlways || u == UsageContextual
}

// Entry represents a knowledge base entry. A nil ThreadID marks the entry as
// account-global; otherwise it is scoped to a single conversation thread.
type Entry struct {
	ID            uuid.UUID    `json:"id"`
	AccountID     string       `json:"account_id"`
	ThreadID      *uuid.UUID   `json:"thread_id"`
	Name          string       `json:"name"`
	Description   *string      `json:"description"`
	Content       string       `json:"content"`
	Usage         UsageContext `json:"usage_context"`
	Active        bool         `json:"active"`
	TokenEstimate *int         `json:"token_estimate"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Scope identifies whose knowledge is packed. A nil ThreadID selects only
// account-global entries; a thread scope selects the thread's entries plus
// the account-global fallback tier.
type Scope struct {
	AccountID string
	ThreadID  *uuid.UUID
}

// CreateCommand carries the data needed to create a knowledge entry.
type CreateCommand struct {
	AccountID     string       `json:"account_id"`
	ThreadID      *uuid.UUID   `json:"thread_id"`
	Name          string       `json:"name"`
	Description   *string      `json:"description"`
	Content       string       `json:"content"`
	Usage         UsageContext `json:"usage_context"`
	TokenEstimate *int         `json:"token_estimate"`
}

// UpdateCommand carries a partial update to a knowledge entry. Nil fields are
// left unchanged.
type UpdateCommand struct {
	Name          *string       `json:"name"`
	Description   *string       `json:"description"`
	Content       *string       `json:"content"`
	Usage         *UsageContext `json:"usage_context"`
	Active        *bool         `json:"active"`
	TokenEstimate *int          `json:"token_estimate"`
}
