package documents

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/lectern/pkg/repository"
	"github.com/JaimeStill/lectern/pkg/storage"
)

const columns = `id, external_id, title, storage_key, size_bytes, last_modified, status, created_at, updated_at, processed_at`

type repo struct {
	db      *sql.DB
	storage storage.System
	logger  *slog.Logger
}

// New creates a document repository implementing the System interface.
func New(db *sql.DB, store storage.System, logger *slog.Logger) System {
	return &repo{
		db:      db,
		storage: store,
		logger:  logger.With("system", "documents"),
	}
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	q := `SELECT ` + columns + ` FROM documents WHERE id = $1`

	d, err := repository.QueryOne(ctx, r.db, q, []any{id}, scanDocument)
	if err != nil {
		return nil, errs.Map(err)
	}
	return &d, nil
}

func (r *repo) Content(ctx context.Context, doc *Document) (string, error) {
	rc, err := r.storage.Download(ctx, doc.StorageKey)
	if err != nil {
		return "", fmt.Errorf("download document %s: %w", doc.ID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", doc.ID, err)
	}
	return string(data), nil
}

func (r *repo) ListPending(ctx context.Context, limit int) ([]Document, error) {
	q := `SELECT ` + columns + `
		FROM documents
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	docs, err := repository.QueryMany(ctx, r.db, q, []any{StatusPending, max(limit, 1)}, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query pending documents: %w", err)
	}
	return docs, nil
}

func (r *repo) Register(ctx context.Context, cmd RegisterCommand) (*Document, Outcome, error) {
	cmd.ExternalID = strings.TrimSpace(cmd.ExternalID)
	if err := cmd.Validate(); err != nil {
		return nil, "", err
	}

	existing, err := repository.QueryOptional(
		ctx, r.db,
		`SELECT `+columns+` FROM documents WHERE external_id = $1`,
		[]any{cmd.ExternalID},
		scanDocument,
	)
	if err != nil {
		return nil, "", fmt.Errorf("find document %s: %w", cmd.ExternalID, err)
	}

	switch registerAction(existing, cmd) {
	case OutcomeUnchanged:
		missing, err := r.contentMissing(ctx, existing)
		if err != nil {
			return nil, "", err
		}
		if !missing {
			r.logger.Info("document already registered", "id", existing.ID, "external_id", cmd.ExternalID)
			return existing, OutcomeUnchanged, nil
		}
		r.logger.Warn("document content missing, restoring", "id", existing.ID, "key", existing.StorageKey)
		fallthrough
	case OutcomeUpdated:
		d, err := r.refresh(ctx, existing, cmd)
		if err != nil {
			return nil, "", err
		}
		return d, OutcomeUpdated, nil
	default:
		d, err := r.create(ctx, cmd)
		if err != nil {
			return nil, "", err
		}
		return d, OutcomeCreated, nil
	}
}

func (r *repo) create(ctx context.Context, cmd RegisterCommand) (*Document, error) {
	id := uuid.New()
	key := buildStorageKey(id)

	if err := r.storage.Upload(ctx, key, strings.NewReader(cmd.Content), "text/plain; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("upload document content: %w", err)
	}

	q := `
		INSERT INTO documents(id, external_id, title, storage_key, size_bytes, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + columns

	args := []any{id, cmd.ExternalID, cmd.Title, key, int64(len(cmd.Content)), cmd.LastModified}

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		return repository.QueryOne(ctx, tx, q, args, scanDocument)
	})
	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, errs.Map(err)
	}

	r.logger.Info("document registered", "id", d.ID, "external_id", d.ExternalID)
	return &d, nil
}

// refresh replaces the content of an existing document and returns it to
// pending so the next batch regenerates its courses.
func (r *repo) refresh(ctx context.Context, existing *Document, cmd RegisterCommand) (*Document, error) {
	if err := r.storage.Upload(ctx, existing.StorageKey, strings.NewReader(cmd.Content), "text/plain; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("upload document content: %w", err)
	}

	q := `
		UPDATE documents
		SET title = $2, size_bytes = $3, last_modified = $4, status = $5, processed_at = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + columns

	args := []any{existing.ID, cmd.Title, int64(len(cmd.Content)), cmd.LastModified, StatusPending}

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		return repository.QueryOne(ctx, tx, q, args, scanDocument)
	})
	if err != nil {
		return nil, errs.Map(err)
	}

	r.logger.Info("document refreshed", "id", d.ID, "external_id", d.ExternalID)
	return &d, nil
}

func (r *repo) MarkProcessed(ctx context.Context, e repository.Executor, id uuid.UUID) error {
	err := repository.ExecExpectOne(
		ctx, e,
		`UPDATE documents SET status = $2, processed_at = NOW(), updated_at = NOW() WHERE id = $1`,
		id, StatusProcessed,
	)
	if err != nil {
		return errs.Map(err)
	}
	return nil
}

// contentMissing reports whether the blob behind a registered document is
// gone from storage.
func (r *repo) contentMissing(ctx context.Context, d *Document) (bool, error) {
	ok, err := r.storage.Exists(ctx, d.StorageKey)
	if err != nil {
		return false, fmt.Errorf("check document content %s: %w", d.ID, err)
	}
	return !ok, nil
}

func buildStorageKey(id uuid.UUID) string {
	return storage.Key("documents", id.String(), "content.txt")
}

func scanDocument(s repository.Scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.ExternalID,
		&d.Title,
		&d.StorageKey,
		&d.SizeBytes,
		&d.LastModified,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.ProcessedAt,
	)
	return d, err
}
