package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/internal/config"
	"github.com/atelier-run/atelier/pkg/pagination"
	"github.com/atelier-run/atelier/pkg/query"
	"github.com/atelier-run/atelier/pkg/repository"
)

const returningColumns = `id, account_id, thread_id, name, description, content, usage_context, active, token_estimate, created_at, updated_at`

type repo struct {
	db         *sql.DB
	cfg        config.KnowledgeConfig
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a knowledge repository implementing the System interface.
func New(
	db *sql.DB,
	cfg config.KnowledgeConfig,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		cfg:        cfg,
		logger:     logger.With("system", "knowledge"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.cfg, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	callerID string,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Entry], error) {
	page.Normalize(r.pagination)

	// The caller's account scope overrides any client-supplied filter.
	filters.AccountID = &callerID

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Content")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count knowledge entries: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	entries, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query knowledge entries: %w", err)
	}

	result := pagination.NewPageResult(entries, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID, callerID string) (*Entry, error) {
	e, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.AccountID != callerID {
		return nil, ErrAccessDenied
	}
	return e, nil
}

func (r *repo) find(ctx context.Context, id uuid.UUID) (*Entry, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	e, err := repository.QueryOne(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Entry, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return nil, ErrMissingName
	}
	if strings.TrimSpace(cmd.Content) == "" {
		return nil, ErrMissingContent
	}
	if cmd.Usage == "" {
		cmd.Usage = UsageContextual
	}
	if !cmd.Usage.Valid() {
		return nil, ErrInvalidUsage
	}

	q := `
		INSERT INTO knowledge_entries(id, account_id, thread_id, name, description, content, usage_context, token_estimate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + returningColumns

	args := []any{
		uuid.New(),
		cmd.AccountID,
		cmd.ThreadID,
		cmd.Name,
		cmd.Description,
		cmd.Content,
		cmd.Usage,
		cmd.TokenEstimate,
	}

	e, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Entry, error) {
		return repository.QueryOne(ctx, tx, q, args, scanEntry)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("knowledge entry created", "id", e.ID, "name", e.Name, "usage", e.Usage)
	return &e, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, callerID string, cmd UpdateCommand) (*Entry, error) {
	if cmd.Usage != nil && !cmd.Usage.Valid() {
		return nil, ErrInvalidUsage
	}

	if _, err := r.Find(ctx, id, callerID); err != nil {
		return nil, err
	}

	q := `
		UPDATE knowledge_entries
		SET name = COALESCE($1, name),
			description = COALESCE($2, description),
			content = COALESCE($3, content),
			usage_context = COALESCE($4, usage_context),
			active = COALESCE($5, active),
			token_estimate = COALESCE($6, token_estimate),
			updated_at = NOW()
		WHERE id = $7
		RETURNING ` + returningColumns

	args := []any{cmd.Name, cmd.Description, cmd.Content, cmd.Usage, cmd.Active, cmd.TokenEstimate, id}

	e, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Entry, error) {
		return repository.QueryOne(ctx, tx, q, args, scanEntry)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("knowledge entry updated", "id", e.ID, "name", e.Name)
	return &e, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID, callerID string) error {
	if _, err := r.Find(ctx, id, callerID); err != nil {
		return err
	}

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM knowledge_entries WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("knowledge entry deleted", "id", id)
	return nil
}

func (r *repo) Candidates(ctx context.Context, scope Scope) ([]Entry, error) {
	q := `
		SELECT ` + returningColumns + `
		FROM knowledge_entries
		WHERE account_id = $1
			AND active = true
			AND usage_context IN ('always', 'contextual')
			AND (thread_id = $2 OR thread_id IS NULL)
		ORDER BY created_at DESC, id`

	args := []any{scope.AccountID, scope.ThreadID}

	if scope.ThreadID == nil {
		// Account scope sees only the global tier.
		q = `
		SELECT ` + returningColumns + `
		FROM knowledge_entries
		WHERE account_id = $1
			AND active = true
			AND usage_context IN ('always', 'contextual')
			AND thread_id IS NULL
		ORDER BY created_at DESC, id`
		args = []any{scope.AccountID}
	}

	entries, err := repository.QueryMany(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query knowledge candidates: %w", err)
	}
	return entries, nil
}

func (r *repo) PackContext(ctx context.Context, scope Scope, maxTokens *int) (*string, error) {
	budget := r.cfg.MaxTokens
	if maxTokens != nil {
		budget = *maxTokens
	}
	if budget <= 0 {
		// An explicit zero budget packs nothing.
		return nil, nil
	}

	entries, err := r.Candidates(ctx, scope)
	if err != nil {
		return nil, err
	}

	packed := Pack(entries, budget, r.cfg.TokenDivisor)
	if packed == nil {
		r.logger.Debug("no knowledge packed", "account", scope.AccountID)
		return nil, nil
	}

	r.logger.Debug("knowledge packed", "account", scope.AccountID, "max_tokens", budget)
	return packed, nil
}
