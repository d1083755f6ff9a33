// Package workflows implements the workflow domain for Atelier.
// It provides types, data access, and business logic for workflow records,
// ownership checks, default-template management, and propagation of default
// workflows into independently owned copies.
package workflows

import (
	"time"

	"github.com/google/uuid"
)

// Status represents a workflow lifecycle state. Transitions are free-form;
// the only hard rule is that disabled and archived workflows never dispatch.
type Status string

// Workflow lifecycle states.
const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusDisabled Status = "disabled"
	StatusArchived Status = "archived"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusDisabled, StatusArchived:
		return true
	}
	return false
}

// Dispatchable reports whether a workflow in this state may be executed.
func (s Status) Dispatchable() bool {
	return s != StatusDisabled && s != StatusArchived
}

// Workflow represents a reusable execution template owned by an account.
// Default workflows are system-owned templates; they are never executed
// directly and are copied into a user's project first.
type Workflow struct {
	ID           uuid.UUID `json:"id"`
	AccountID    string    `json:"account_id"`
	ProjectID    uuid.UUID `json:"project_id"`
	CreatedBy    string    `json:"created_by"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	Status       Status    `json:"status"`
	MasterPrompt string    `json:"master_prompt"`
	IsDefault    bool      `json:"is_default"`
	ImageURL     *string   `json:"image_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to create a new workflow.
type CreateCommand struct {
	AccountID    string    `json:"account_id"`
	ProjectID    uuid.UUID `json:"project_id"`
	CreatedBy    string    `json:"created_by"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	MasterPrompt string    `json:"master_prompt"`
	ImageURL     *string   `json:"image_url"`
	IsDefault    bool      `json:"is_default"`
}

// UpdateCommand carries the data needed to update an existing workflow.
// All fields are optional; nil fields are left unchanged.
type UpdateCommand struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	MasterPrompt *string `json:"master_prompt"`
	Status       *Status `json:"status"`
	ImageURL     *string `json:"image_url"`
}
