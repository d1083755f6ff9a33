package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"golang.org/x/sync/singleflight"

	"github.com/atelier-run/atelier/internal/assembly"
	"github.com/atelier-run/atelier/internal/config"
)

// credentialsFileName is the well-known path, relative to the workspace
// directory, where the run's decrypted credentials are staged.
const credentialsFileName = ".credentials.json"

// Dispatcher transfers assembled execution contexts into owner-labeled
// environments and starts runs.
type Dispatcher struct {
	collab Collaborator
	cfg    config.SandboxConfig
	logger *slog.Logger

	// Concurrent runs for the same owner must not race environment creation;
	// the ensure step is collapsed per owner.
	ensure singleflight.Group
}

// NewDispatcher creates a Dispatcher over the given collaborator.
func NewDispatcher(collab Collaborator, cfg config.SandboxConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		collab: collab,
		cfg:    cfg,
		logger: logger.With("system", "sandbox"),
	}
}

// Dispatch ensures an environment for the context's owner, stages the
// context's files under the workspace directory in their assembled order,
// and starts the run. Dispatch is fire-and-forget: the handle returns as
// soon as the run has started, and a run already handed to the collaborator
// cannot be cancelled from here.
func (d *Dispatcher) Dispatch(ctx context.Context, ec *assembly.ExecutionContext) (*RunHandle, error) {
	env, err := d.ensureEnvironment(ctx, ec.OwnerID)
	if err != nil {
		return nil, err
	}

	transferred := 0
	for _, f := range ec.Files {
		name := path.Base(f.Name)
		if name == "" || name == "." || name == ".." || name == "/" {
			d.logger.Warn("file with unusable name skipped", "run", ec.RunID, "file", f.Name)
			continue
		}

		if err := d.transfer(ctx, env, path.Join(d.cfg.WorkspaceDir, name), f.Data); err != nil {
			// A lost attachment degrades the run instead of failing it.
			d.logger.Warn("file transfer failed, skipping", "run", ec.RunID, "file", f.Name, "error", err)
			continue
		}
		transferred++
	}

	if len(ec.Credentials) > 0 {
		// Unlike ordinary files, a failed credential staging fails the run.
		if err := d.stageCredentials(ctx, env, ec); err != nil {
			return nil, err
		}
	}

	handle, err := d.collab.StartRun(ctx, env, ec.Prompt)
	if err != nil {
		return nil, err
	}

	d.logger.Info(
		"run dispatched",
		"run", ec.RunID,
		"workflow", ec.WorkflowID,
		"environment", env.ID,
		"files", transferred,
		"thread_id", handle.ThreadID,
		"run_id", handle.RunID,
	)
	return handle, nil
}

func (d *Dispatcher) ensureEnvironment(ctx context.Context, ownerID string) (*Environment, error) {
	v, err, _ := d.ensure.Do(ownerID, func() (any, error) {
		ectx, cancel := context.WithTimeout(ctx, d.cfg.EnsureTimeoutDuration())
		defer cancel()

		return d.collab.EnsureEnvironment(ectx, ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("ensure environment for owner: %w", err)
	}

	return v.(*Environment), nil
}

func (d *Dispatcher) transfer(ctx context.Context, env *Environment, relPath string, data []byte) error {
	tctx, cancel := context.WithTimeout(ctx, d.cfg.TransferTimeoutDuration())
	defer cancel()

	if err := d.collab.TransferFile(tctx, env, relPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransfer, relPath, err)
	}
	return nil
}

func (d *Dispatcher) stageCredentials(ctx context.Context, env *Environment, ec *assembly.ExecutionContext) error {
	payload, err := json.Marshal(ec.Credentials)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	relPath := path.Join(d.cfg.WorkspaceDir, credentialsFileName)
	if err := d.transfer(ctx, env, relPath, payload); err != nil {
		return err
	}
	return nil
}
