package assembly

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/atelier-run/atelier/internal/config"
	"github.com/atelier-run/atelier/internal/credentials"
	"github.com/atelier-run/atelier/internal/files"
	"github.com/atelier-run/atelier/internal/knowledge"
	"github.com/atelier-run/atelier/internal/workflows"
)

// WorkflowSource loads dispatchable workflows for assembly.
type WorkflowSource interface {
	FindDispatchable(ctx context.Context, id uuid.UUID, callerID string) (*workflows.Workflow, error)
}

// FileSource lists a workflow's files and streams their content.
type FileSource interface {
	All(ctx context.Context, workflowID uuid.UUID) ([]files.WorkflowFile, error)
	Open(ctx context.Context, f files.WorkflowFile) ([]byte, error)
}

// CredentialSource decrypts a workflow's credentials for dispatch.
type CredentialSource interface {
	Decrypted(ctx context.Context, workflowID uuid.UUID) ([]credentials.Decrypted, error)
}

// KnowledgePacker produces a token-budgeted knowledge context section. A nil
// budget packs under the packer's configured default.
type KnowledgePacker interface {
	PackContext(ctx context.Context, scope knowledge.Scope, maxTokens *int) (*string, error)
}

// System assembles execution contexts.
type System interface {
	Assemble(ctx context.Context, workflowID uuid.UUID, callerID string, overrides RunOverrides) (*ExecutionContext, error)
}

type assembler struct {
	workflows   WorkflowSource
	files       FileSource
	credentials CredentialSource
	knowledge   KnowledgePacker
	cfg         config.AssemblyConfig
	logger      *slog.Logger
}

// New creates a context assembler wired to its source systems.
func New(
	wf WorkflowSource,
	fs FileSource,
	cs CredentialSource,
	kp KnowledgePacker,
	cfg config.AssemblyConfig,
	logger *slog.Logger,
) System {
	return &assembler{
		workflows:   wf,
		files:       fs,
		credentials: cs,
		knowledge:   kp,
		cfg:         cfg,
		logger:      logger.With("system", "assembly"),
	}
}

// Assemble builds the execution context for one run. The workflow must be
// dispatchable by the caller; a missing workflow or a disabled one fails
// outright. Individual stored-file fetch failures are logged and the file is
// skipped, so a run never fails because one of several attachments is
// unavailable.
func (a *assembler) Assemble(
	ctx context.Context,
	workflowID uuid.UUID,
	callerID string,
	overrides RunOverrides,
) (*ExecutionContext, error) {
	flow, err := a.workflows.FindDispatchable(ctx, workflowID, callerID)
	if err != nil {
		return nil, err
	}

	prompt := flow.MasterPrompt
	if instructions := strings.TrimSpace(overrides.AdditionalInstructions); instructions != "" {
		prompt += "\n\n" + AdditionalInstructionsHeader + "\n\n" + instructions
	}

	transfers := a.fetchStoredFiles(ctx, flow.ID)
	transfers = append(transfers, overrides.RunFiles...)

	if overrides.IncludeKnowledge {
		scope := knowledge.Scope{AccountID: flow.AccountID, ThreadID: overrides.ThreadID}
		packed, err := a.knowledge.PackContext(ctx, scope, nil)
		if err != nil {
			a.logger.Warn("knowledge packing failed, section omitted", "workflow", flow.ID, "error", err)
		} else if packed != nil {
			prompt += "\n\n" + KnowledgeContextHeader + "\n\n" + *packed
		}
	}

	creds, err := a.credentials.Decrypted(ctx, flow.ID)
	if err != nil {
		// A credential that cannot be decrypted never degrades into an empty
		// value; the run fails instead.
		return nil, err
	}

	ec := &ExecutionContext{
		WorkflowID:  flow.ID,
		RunID:       uuid.New(),
		OwnerID:     callerID,
		Prompt:      prompt,
		Files:       transfers,
		Credentials: creds,
	}

	a.logger.Info(
		"execution context assembled",
		"workflow", flow.ID,
		"run", ec.RunID,
		"files", len(ec.Files),
		"credentials", len(ec.Credentials),
	)
	return ec, nil
}

// fetchStoredFiles resolves the workflow's stored files in parallel, each
// bounded by the fetch timeout. Failures are logged and skipped; the
// remaining files keep their stored order.
func (a *assembler) fetchStoredFiles(ctx context.Context, workflowID uuid.UUID) []TransferFile {
	records, err := a.files.All(ctx, workflowID)
	if err != nil {
		a.logger.Warn("stored file listing failed, continuing without attachments", "workflow", workflowID, "error", err)
		return nil
	}

	fetched := make([]*TransferFile, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.FetchWorkers)

	for i, f := range records {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, a.cfg.FetchTimeoutDuration())
			defer cancel()

			data, err := a.files.Open(fctx, f)
			if err != nil {
				a.logger.Warn("file fetch failed, skipping", "workflow", workflowID, "file", f.ID, "error", err)
				return nil
			}

			fetched[i] = &TransferFile{
				Name:        f.Filename,
				ContentType: f.ContentType,
				Data:        data,
			}
			return nil
		})
	}

	// Fetch closures swallow their own failures, so Wait only synchronizes.
	_ = g.Wait()

	transfers := make([]TransferFile, 0, len(records))
	for _, tf := range fetched {
		if tf != nil {
			transfers = append(transfers, *tf)
		}
	}
	return transfers
}
