// Package files implements workflow file attachments: validated uploads,
// blob-backed storage, propagation between workflows, and retrieval for
// execution context assembly.
package files

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowFile represents a validated file attached to a workflow and stored
// as a blob under the workflow's storage prefix.
type WorkflowFile struct {
	ID          uuid.UUID `json:"id"`
	WorkflowID  uuid.UUID `json:"workflow_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   *int      `json:"page_count"`
	StorageKey  string    `json:"storage_key"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to attach a file to a workflow.
type CreateCommand struct {
	WorkflowID  uuid.UUID
	CreatedBy   string
	Filename    string
	ContentType string
	PageCount   *int
	Data        []byte
}
