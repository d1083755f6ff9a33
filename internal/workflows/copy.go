package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// FilePropagator duplicates all file attachments from one workflow to another,
// producing fresh storage objects and rows. It returns the number of files copied.
type FilePropagator interface {
	CopyAll(ctx context.Context, sourceID, targetID uuid.UUID) (int, error)
}

// CredentialPropagator duplicates all credentials from one workflow to another,
// re-encrypting each secret into an independent row.
type CredentialPropagator interface {
	CopyAll(ctx context.Context, sourceID, targetID uuid.UUID) (int, error)
}

// Copier propagates a workflow into a fully independent copy: a new workflow
// row plus duplicated files and credentials. Copies of default templates are
// how users adopt them, since defaults never dispatch directly.
type Copier struct {
	sys    System
	files  FilePropagator
	creds  CredentialPropagator
	logger *slog.Logger
}

// NewCopier creates a Copier wired to the workflow system and its propagators.
func NewCopier(
	sys System,
	files FilePropagator,
	creds CredentialPropagator,
	logger *slog.Logger,
) *Copier {
	return &Copier{
		sys:    sys,
		files:  files,
		creds:  creds,
		logger: logger.With("system", "workflow-copier"),
	}
}

// CopyCommand identifies the source workflow and the destination of its copy.
type CopyCommand struct {
	SourceID  uuid.UUID
	AccountID string
	ProjectID uuid.UUID
	CreatedBy string
}

// Copy duplicates the source workflow into the target project. The copy is
// always a non-default draft owned by the caller; its name is auto-suffixed
// when the source name is already taken in the target project. Mutating the
// copy never touches the source.
func (c *Copier) Copy(ctx context.Context, cmd CopyCommand) (*Workflow, error) {
	source, err := c.sys.FindOwned(ctx, cmd.SourceID, cmd.CreatedBy)
	if err != nil {
		return nil, err
	}

	name, err := c.sys.UniqueName(ctx, cmd.ProjectID, copyName(source))
	if err != nil {
		return nil, err
	}

	copied, err := c.sys.Create(ctx, CreateCommand{
		AccountID:    cmd.AccountID,
		ProjectID:    cmd.ProjectID,
		CreatedBy:    cmd.CreatedBy,
		Name:         name,
		Description:  source.Description,
		MasterPrompt: source.MasterPrompt,
		ImageURL:     source.ImageURL,
		IsDefault:    false,
	})
	if err != nil {
		return nil, fmt.Errorf("create workflow copy: %w", err)
	}

	copiedFiles, err := c.files.CopyAll(ctx, source.ID, copied.ID)
	if err != nil {
		// The copy remains usable without its attachments. Surface the gap in
		// logs and let the user re-upload.
		c.logger.Warn(
			"file propagation incomplete",
			"source", source.ID,
			"target", copied.ID,
			"copied", copiedFiles,
			"error", err,
		)
	}

	copiedCreds, err := c.creds.CopyAll(ctx, source.ID, copied.ID)
	if err != nil {
		// A copy without its credentials would dispatch broken; remove the
		// half-built workflow so the failure leaves nothing behind.
		if delErr := c.sys.Delete(ctx, copied.ID, cmd.CreatedBy); delErr != nil {
			c.logger.Error(
				"orphaned workflow copy could not be removed",
				"workflow", copied.ID,
				"error", delErr,
			)
		}
		return nil, fmt.Errorf("propagate credentials: %w", err)
	}

	c.logger.Info(
		"workflow copied",
		"source", source.ID,
		"target", copied.ID,
		"name", copied.Name,
		"files", copiedFiles,
		"credentials", copiedCreds,
	)
	return copied, nil
}

func copyName(source *Workflow) string {
	if source.IsDefault {
		return source.Name
	}
	return source.Name + " (Copy)"
}
