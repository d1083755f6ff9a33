package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/atelier-run/atelier/internal/workflows"
	"github.com/atelier-run/atelier/pkg/pagination"
	"github.com/atelier-run/atelier/pkg/query"
	"github.com/atelier-run/atelier/pkg/repository"
	"github.com/atelier-run/atelier/pkg/vault"
)

const returningColumns = `id, workflow_id, service, username, encrypted_secret, created_by, created_at, updated_at`

type repo struct {
	db         *sql.DB
	vault      vault.System
	gate       WorkflowGate
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a credential repository implementing the System interface.
func New(
	db *sql.DB,
	v vault.System,
	gate WorkflowGate,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		vault:      v,
		gate:       gate,
		logger:     logger.With("system", "credentials"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	workflowID uuid.UUID,
	callerID string,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Credential], error) {
	if err := r.gate.Authorize(ctx, workflowID, callerID); err != nil {
		return nil, err
	}

	page.Normalize(r.pagination)

	wid := workflowID.String()
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("WorkflowID", &wid).
		WhereSearch(page.Search, "Service", "Username")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count credentials: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	creds, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanCredential)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}

	result := pagination.NewPageResult(creds, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, workflowID, credentialID uuid.UUID, callerID string) (*Credential, error) {
	if err := r.gate.Authorize(ctx, workflowID, callerID); err != nil {
		return nil, err
	}
	return r.find(ctx, workflowID, credentialID)
}

func (r *repo) find(ctx context.Context, workflowID, credentialID uuid.UUID) (*Credential, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", credentialID)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanCredential)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	if c.WorkflowID != workflowID {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Credential, error) {
	if strings.TrimSpace(cmd.Service) == "" {
		return nil, ErrMissingService
	}
	if cmd.Secret == "" {
		return nil, ErrMissingSecret
	}

	if err := r.authorizeWrite(ctx, cmd.WorkflowID, cmd.CreatedBy); err != nil {
		return nil, err
	}

	encrypted, err := r.vault.Encrypt(cmd.Secret)
	if err != nil {
		return nil, fmt.Errorf("encrypt secret: %w", err)
	}

	q := `
		INSERT INTO workflow_credentials(id, workflow_id, service, username, encrypted_secret, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + returningColumns

	args := []any{uuid.New(), cmd.WorkflowID, cmd.Service, cmd.Username, encrypted, cmd.CreatedBy}

	c, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Credential, error) {
		return repository.QueryOne(ctx, tx, q, args, scanCredential)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("credential created", "id", c.ID, "workflow", c.WorkflowID, "service", c.Service)
	return &c, nil
}

func (r *repo) Update(ctx context.Context, workflowID, credentialID uuid.UUID, callerID string, cmd UpdateCommand) (*Credential, error) {
	if err := r.authorizeWrite(ctx, workflowID, callerID); err != nil {
		return nil, err
	}

	if _, err := r.find(ctx, workflowID, credentialID); err != nil {
		return nil, err
	}

	var encrypted *string
	if cmd.Secret != nil {
		if *cmd.Secret == "" {
			return nil, ErrMissingSecret
		}
		sealed, err := r.vault.Encrypt(*cmd.Secret)
		if err != nil {
			return nil, fmt.Errorf("encrypt secret: %w", err)
		}
		encrypted = &sealed
	}

	q := `
		UPDATE workflow_credentials
		SET username = COALESCE($1, username),
			encrypted_secret = COALESCE($2, encrypted_secret),
			updated_at = NOW()
		WHERE id = $3
		RETURNING ` + returningColumns

	c, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Credential, error) {
		return repository.QueryOne(ctx, tx, q, []any{cmd.Username, encrypted, credentialID}, scanCredential)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("credential updated", "id", c.ID, "workflow", c.WorkflowID, "rotated", cmd.Secret != nil)
	return &c, nil
}

func (r *repo) Delete(ctx context.Context, workflowID, credentialID uuid.UUID, callerID string) error {
	if err := r.authorizeWrite(ctx, workflowID, callerID); err != nil {
		return err
	}

	if _, err := r.find(ctx, workflowID, credentialID); err != nil {
		return err
	}

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM workflow_credentials WHERE id = $1",
			credentialID,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("credential deleted", "id", credentialID, "workflow", workflowID)
	return nil
}

func (r *repo) Reveal(ctx context.Context, workflowID, credentialID uuid.UUID, callerID string) (*Decrypted, error) {
	owner, err := r.gate.FindOwned(ctx, workflowID, callerID)
	if err != nil {
		return nil, err
	}
	if owner.CreatedBy != callerID {
		return nil, workflows.ErrAccessDenied
	}

	c, err := r.find(ctx, workflowID, credentialID)
	if err != nil {
		return nil, err
	}

	secret, err := r.vault.Decrypt(c.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential %s: %w", c.ID, err)
	}

	r.logger.Info("credential revealed", "id", c.ID, "workflow", workflowID)
	return &Decrypted{Service: c.Service, Username: c.Username, Secret: secret}, nil
}

func (r *repo) Decrypted(ctx context.Context, workflowID uuid.UUID) ([]Decrypted, error) {
	q := `
		SELECT ` + returningColumns + `
		FROM workflow_credentials
		WHERE workflow_id = $1
		ORDER BY service, username`

	creds, err := repository.QueryMany(ctx, r.db, q, []any{workflowID}, scanCredential)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}

	decrypted := make([]Decrypted, 0, len(creds))
	for _, c := range creds {
		secret, err := r.vault.Decrypt(c.Encrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt credential %s: %w", c.ID, err)
		}
		decrypted = append(decrypted, Decrypted{Service: c.Service, Username: c.Username, Secret: secret})
	}

	return decrypted, nil
}

func (r *repo) CopyAll(ctx context.Context, sourceID, targetID uuid.UUID) (int, error) {
	q := `
		SELECT ` + returningColumns + `
		FROM workflow_credentials
		WHERE workflow_id = $1
		ORDER BY service, username`

	creds, err := repository.QueryMany(ctx, r.db, q, []any{sourceID}, scanCredential)
	if err != nil {
		return 0, fmt.Errorf("query credentials: %w", err)
	}

	copied := 0
	for _, c := range creds {
		// Decrypt and re-seal so every copy carries an independent ciphertext.
		secret, err := r.vault.Decrypt(c.Encrypted)
		if err != nil {
			return copied, fmt.Errorf("decrypt credential %s: %w", c.ID, err)
		}

		encrypted, err := r.vault.Encrypt(secret)
		if err != nil {
			return copied, fmt.Errorf("encrypt copied secret: %w", err)
		}

		insert := `
			INSERT INTO workflow_credentials(id, workflow_id, service, username, encrypted_secret, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)`

		_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
			_, execErr := tx.ExecContext(ctx, insert, uuid.New(), targetID, c.Service, c.Username, encrypted, c.CreatedBy)
			return struct{}{}, execErr
		})
		if err != nil {
			return copied, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		copied++
	}

	r.logger.Info("credentials copied", "source", sourceID, "target", targetID, "count", copied)
	return copied, nil
}

func (r *repo) authorizeWrite(ctx context.Context, workflowID uuid.UUID, callerID string) error {
	owner, err := r.gate.FindOwned(ctx, workflowID, callerID)
	if err != nil {
		return err
	}
	if owner.CreatedBy != callerID {
		return workflows.ErrAccessDenied
	}
	return nil
}
