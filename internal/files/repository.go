package files

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/atelier-run/atelier/internal/workflows"
	"github.com/atelier-run/atelier/pkg/pagination"
	"github.com/atelier-run/atelier/pkg/query"
	"github.com/atelier-run/atelier/pkg/repository"
	"github.com/atelier-run/atelier/pkg/storage"
)

const returningColumns = `id, workflow_id, filename, content_type, size_bytes, page_count, storage_key, created_by, created_at, updated_at`

type repo struct {
	db         *sql.DB
	storage    storage.System
	gate       WorkflowGate
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a workflow file repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	gate WorkflowGate,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		gate:       gate,
		logger:     logger.With("system", "files"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	workflowID uuid.UUID,
	callerID string,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[WorkflowFile], error) {
	if err := r.gate.Authorize(ctx, workflowID, callerID); err != nil {
		return nil, err
	}

	page.Normalize(r.pagination)

	wid := workflowID.String()
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("WorkflowID", &wid).
		WhereSearch(page.Search, "Filename")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count workflow files: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	records, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanFile)
	if err != nil {
		return nil, fmt.Errorf("query workflow files: %w", err)
	}

	result := pagination.NewPageResult(records, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, workflowID, fileID uuid.UUID, callerID string) (*WorkflowFile, error) {
	if err := r.gate.Authorize(ctx, workflowID, callerID); err != nil {
		return nil, err
	}
	return r.find(ctx, workflowID, fileID)
}

func (r *repo) find(ctx context.Context, workflowID, fileID uuid.UUID) (*WorkflowFile, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", fileID)

	f, err := repository.QueryOne(ctx, r.db, q, args, scanFile)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	if f.WorkflowID != workflowID {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (r *repo) Download(ctx context.Context, workflowID, fileID uuid.UUID, callerID string) (*WorkflowFile, io.ReadCloser, error) {
	f, err := r.Find(ctx, workflowID, fileID, callerID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := r.storage.Download(ctx, f.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("blob missing for file %s: %w", f.ID, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("download file %s: %w", f.ID, err)
	}

	return f, rc, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*WorkflowFile, error) {
	owner, err := r.gate.FindOwned(ctx, cmd.WorkflowID, cmd.CreatedBy)
	if err != nil {
		return nil, err
	}
	if owner.CreatedBy != cmd.CreatedBy {
		// Default templates are readable by everyone but writable only by
		// their creator.
		return nil, workflows.ErrAccessDenied
	}

	id := uuid.New()
	key := buildStorageKey(cmd.WorkflowID, id, cmd.Filename)

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload file blob: %w", err)
	}

	q := `
		INSERT INTO workflow_files(id, workflow_id, filename, content_type, size_bytes, page_count, storage_key, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + returningColumns

	args := []any{
		id,
		cmd.WorkflowID,
		cmd.Filename,
		cmd.ContentType,
		int64(len(cmd.Data)),
		cmd.PageCount,
		key,
		cmd.CreatedBy,
	}

	f, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (WorkflowFile, error) {
		return repository.QueryOne(ctx, tx, q, args, scanFile)
	})

	if err != nil {
		for _, outcome := range r.storage.Remove(ctx, key) {
			if outcome.Err != nil {
				r.logger.Warn("compensating blob delete failed", "key", outcome.Key, "error", outcome.Err)
			}
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("workflow file created", "id", f.ID, "workflow", f.WorkflowID, "filename", f.Filename)
	return &f, nil
}

func (r *repo) Delete(ctx context.Context, workflowID, fileID uuid.UUID, callerID string) error {
	owner, err := r.gate.FindOwned(ctx, workflowID, callerID)
	if err != nil {
		return err
	}
	if owner.CreatedBy != callerID {
		return workflows.ErrAccessDenied
	}

	f, err := r.find(ctx, workflowID, fileID)
	if err != nil {
		return err
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM workflow_files WHERE id = $1",
			fileID,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	// Some backends report a missing blob, some report success when the
	// object is already gone. Both count as deleted here.
	for _, outcome := range r.storage.Remove(ctx, f.StorageKey) {
		if outcome.Err != nil && !errors.Is(outcome.Err, storage.ErrNotFound) {
			r.logger.Warn(
				"blob delete failed after DB delete",
				"key", outcome.Key,
				"error", outcome.Err,
			)
		}
	}

	r.logger.Info("workflow file deleted", "id", fileID, "workflow", workflowID)
	return nil
}

func (r *repo) All(ctx context.Context, workflowID uuid.UUID) ([]WorkflowFile, error) {
	q := `
		SELECT ` + returningColumns + `
		FROM workflow_files
		WHERE workflow_id = $1
		ORDER BY created_at DESC, id`

	records, err := repository.QueryMany(ctx, r.db, q, []any{workflowID}, scanFile)
	if err != nil {
		return nil, fmt.Errorf("query workflow files: %w", err)
	}
	return records, nil
}

func (r *repo) Open(ctx context.Context, f WorkflowFile) ([]byte, error) {
	var data []byte

	backoff := retry.WithMaxRetries(1, retry.NewConstant(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		rc, err := r.storage.Download(ctx, f.StorageKey)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return err
			}
			return retry.RetryableError(err)
		}
		defer rc.Close()

		data, err = io.ReadAll(rc)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("read file blob %s: %w", f.StorageKey, err)
	}
	return data, nil
}

func (r *repo) CopyAll(ctx context.Context, sourceID, targetID uuid.UUID) (int, error) {
	records, err := r.All(ctx, sourceID)
	if err != nil {
		return 0, err
	}

	var (
		copied   int
		failures []error
	)

	for _, f := range records {
		if err := r.copyOne(ctx, f, targetID); err != nil {
			failures = append(failures, fmt.Errorf("copy file %s: %w", f.ID, err))
			continue
		}
		copied++
	}

	if len(failures) > 0 {
		return copied, errors.Join(failures...)
	}

	r.logger.Info("workflow files copied", "source", sourceID, "target", targetID, "count", copied)
	return copied, nil
}

func (r *repo) copyOne(ctx context.Context, f WorkflowFile, targetID uuid.UUID) error {
	data, err := r.Open(ctx, f)
	if err != nil {
		return err
	}

	id := uuid.New()
	key := buildStorageKey(targetID, id, f.Filename)

	if err := r.storage.Upload(ctx, key, bytes.NewReader(data), f.ContentType); err != nil {
		return fmt.Errorf("upload copied blob: %w", err)
	}

	q := `
		INSERT INTO workflow_files(id, workflow_id, filename, content_type, size_bytes, page_count, storage_key, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		_, execErr := tx.ExecContext(ctx, q, id, targetID, f.Filename, f.ContentType, f.SizeBytes, f.PageCount, key, f.CreatedBy)
		return struct{}{}, execErr
	})

	if err != nil {
		for _, outcome := range r.storage.Remove(ctx, key) {
			if outcome.Err != nil {
				r.logger.Warn("compensating blob delete failed", "key", outcome.Key, "error", outcome.Err)
			}
		}
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	return nil
}

func buildStorageKey(workflowID, fileID uuid.UUID, filename string) string {
	return fmt.Sprintf("workflows/%s/%s%s", workflowID, fileID, strings.ToLower(filepath.Ext(filename)))
}
