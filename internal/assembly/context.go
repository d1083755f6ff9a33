// Package assembly merges a workflow's stored master prompt, run-time
// overrides, stored files, and packed knowledge context into a single
// ephemeral execution payload. The payload is built per run request and
// discarded after dispatch; nothing here writes back to the workflow.
package assembly

import (
	"github.com/google/uuid"

	"github.com/atelier-run/atelier/internal/credentials"
)

// Prompt section headers appended during assembly. These are textual appends
// to the prompt handed to the sandbox, never structural edits to the stored
// master prompt.
const (
	AdditionalInstructionsHeader = "## Additional Instructions"
	KnowledgeContextHeader       = "## Knowledge Base Context"
)

// TransferFile is a file staged for transfer into the sandbox.
type TransferFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// RunOverrides carries the per-run, non-persistent configuration supplied
// with a run request.
type RunOverrides struct {
	AdditionalInstructions string
	RunFiles               []TransferFile
	ThreadID               *uuid.UUID
	IncludeKnowledge       bool
}

// ExecutionContext is the merged payload for one run. Files are ordered
// stored-first then run-time, so prompt references to relative paths stay
// stable across retries.
type ExecutionContext struct {
	WorkflowID  uuid.UUID
	RunID       uuid.UUID
	OwnerID     string
	Prompt      string
	Files       []TransferFile
	Credentials []credentials.Decrypted
}
