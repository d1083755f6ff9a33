package workflows

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/pkg/pagination"
	"github.com/atelier-run/atelier/pkg/query"
	"github.com/atelier-run/atelier/pkg/repository"
	"github.com/atelier-run/atelier/pkg/storage"
)

const returningColumns = `id, account_id, project_id, created_by, name, description, status, master_prompt, is_default, image_url, created_at, updated_at`

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a workflow repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "workflows"),
		pagination: pagination,
	}
}

func (r *repo) Handler(copier *Copier) *Handler {
	return NewHandler(r, copier, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Workflow], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Description")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count workflows: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	flows, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanWorkflow)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}

	result := pagination.NewPageResult(flows, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	w, err := repository.QueryOne(ctx, r.db, q, args, scanWorkflow)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &w, nil
}

func (r *repo) FindOwned(ctx context.Context, id uuid.UUID, callerID string) (*Workflow, error) {
	w, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !w.IsDefault && w.CreatedBy != callerID {
		return nil, ErrAccessDenied
	}
	return w, nil
}

func (r *repo) Authorize(ctx context.Context, id uuid.UUID, callerID string) error {
	_, err := r.FindOwned(ctx, id, callerID)
	return err
}

func (r *repo) FindDispatchable(ctx context.Context, id uuid.UUID, callerID string) (*Workflow, error) {
	w, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if w.CreatedBy != callerID {
		return nil, ErrAccessDenied
	}

	// Default templates dispatch only through a propagated copy.
	if w.IsDefault || !w.Status.Dispatchable() {
		return nil, ErrNotDispatchable
	}
	return w, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Workflow, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return nil, ErrMissingName
	}
	if strings.TrimSpace(cmd.MasterPrompt) == "" {
		return nil, ErrMissingPrompt
	}

	q := `
		INSERT INTO workflows(id, account_id, project_id, created_by, name, description, status, master_prompt, is_default, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + returningColumns

	args := []any{
		uuid.New(),
		cmd.AccountID,
		cmd.ProjectID,
		cmd.CreatedBy,
		cmd.Name,
		cmd.Description,
		StatusDraft,
		cmd.MasterPrompt,
		cmd.IsDefault,
		cmd.ImageURL,
	}

	w, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Workflow, error) {
		return repository.QueryOne(ctx, tx, q, args, scanWorkflow)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("workflow created", "id", w.ID, "name", w.Name, "project", w.ProjectID)
	return &w, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, callerID string, cmd UpdateCommand) (*Workflow, error) {
	current, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.CreatedBy != callerID {
		return nil, ErrAccessDenied
	}
	if current.IsDefault {
		return nil, ErrDefaultImmutable
	}
	if cmd.Status != nil && !cmd.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	q := `
		UPDATE workflows
		SET name = COALESCE($1, name),
			description = COALESCE($2, description),
			master_prompt = COALESCE($3, master_prompt),
			status = COALESCE($4, status),
			image_url = COALESCE($5, image_url),
			updated_at = NOW()
		WHERE id = $6
		RETURNING ` + returningColumns

	args := []any{cmd.Name, cmd.Description, cmd.MasterPrompt, cmd.Status, cmd.ImageURL, id}

	w, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Workflow, error) {
		return repository.QueryOne(ctx, tx, q, args, scanWorkflow)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("workflow updated", "id", w.ID, "name", w.Name)
	return &w, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID, callerID string) error {
	current, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	if current.CreatedBy != callerID {
		return ErrAccessDenied
	}
	if current.IsDefault {
		return ErrDefaultImmutable
	}

	keys, err := repository.QueryMany(
		ctx, r.db,
		"SELECT storage_key FROM workflow_files WHERE workflow_id = $1",
		[]any{id},
		func(s repository.Scanner) (string, error) {
			var key string
			err := s.Scan(&key)
			return key, err
		},
	)
	if err != nil {
		return fmt.Errorf("collect workflow file keys: %w", err)
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM workflows WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	// File and credential rows cascade with the workflow row. Blob cleanup is
	// best effort; orphaned objects are reported but never fail the delete.
	for _, outcome := range r.storage.Remove(ctx, keys...) {
		if outcome.Err != nil {
			r.logger.Warn(
				"blob delete failed after workflow delete",
				"key", outcome.Key,
				"error", outcome.Err,
			)
		}
	}

	r.logger.Info("workflow deleted", "id", id, "files", len(keys))
	return nil
}

func (r *repo) SetDefault(ctx context.Context, id uuid.UUID, isDefault bool) (*Workflow, error) {
	q := `
		UPDATE workflows
		SET is_default = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + returningColumns

	w, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Workflow, error) {
		return repository.QueryOne(ctx, tx, q, []any{isDefault, id}, scanWorkflow)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("workflow default flag set", "id", w.ID, "is_default", w.IsDefault)
	return &w, nil
}

func (r *repo) UniqueName(ctx context.Context, projectID uuid.UUID, base string) (string, error) {
	taken, err := repository.QueryMany(
		ctx, r.db,
		"SELECT name FROM workflows WHERE project_id = $1 AND (name = $2 OR name LIKE $2 || ' %')",
		[]any{projectID, base},
		func(s repository.Scanner) (string, error) {
			var name string
			err := s.Scan(&name)
			return name, err
		},
	)
	if err != nil {
		return "", fmt.Errorf("query workflow names: %w", err)
	}

	return NextAvailableName(base, taken), nil
}

// NextAvailableName returns base when unused, otherwise the first numbered
// variant ("base 2", "base 3", ...) not present in taken. When the first
// fifty variants are all taken it falls back to a random suffix.
func NextAvailableName(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, name := range taken {
		used[name] = struct{}{}
	}

	if _, ok := used[base]; !ok {
		return base
	}

	for n := 2; n <= 50; n++ {
		candidate := fmt.Sprintf("%s %d", base, n)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}

	return fmt.Sprintf("%s %s", base, uuid.NewString()[:8])
}
