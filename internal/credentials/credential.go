// Package credentials implements the workflow credential vault: encrypted
// secret storage, masked listing, owner-gated reveal, and re-encrypting
// propagation between workflows.
package credentials

import (
	"time"

	"github.com/google/uuid"
)

// Credential represents a service credential attached to a workflow. The
// secret is stored encrypted and never serialized; read it through Reveal
// or Decrypted.
type Credential struct {
	ID         uuid.UUID `json:"id"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	Service    string    `json:"service"`
	Username   string    `json:"username"`
	Encrypted  string    `json:"-"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Decrypted is a credential with its secret in plaintext, produced only for
// execution context assembly and the reveal endpoint.
type Decrypted struct {
	Service  string `json:"service"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// CreateCommand carries the data needed to store a new credential.
type CreateCommand struct {
	WorkflowID uuid.UUID `json:"workflow_id"`
	CreatedBy  string    `json:"created_by"`
	Service    string    `json:"service"`
	Username   string    `json:"username"`
	Secret     string    `json:"secret"`
}

// UpdateCommand rotates a credential's secret and optionally its username.
// Nil fields are left unchanged.
type UpdateCommand struct {
	Username *string `json:"username"`
	Secret   *string `json:"secret"`
}
