package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

type PassageRepository struct {
	db *sql.DB
}

func NewPassageRepository(db *sql.DB) *PassageRepository {
	return &PassageRepository{db: db}
}

func (r *PassageRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026021002)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS passages (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	page INTEGER NOT NULL DEFAULT 0,
	section TEXT,
	category TEXT,
	content TEXT NOT NULL,
	position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_passages_document_id ON passages(document_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ReplaceForDocument swaps a document's passages atomically so a reprocess
// never leaves a mix of old and new chunks behind.
func (r *PassageRepository) ReplaceForDocument(ctx context.Context, documentID string, passages []domain.Passage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete passages: %w", err)
	}

	for i, p := range passages {
		_, err := tx.ExecContext(ctx, `
INSERT INTO passages (id, document_id, source, page, section, category, content, position)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, p.ID, documentID, p.Source, p.Page, p.Section, p.Category, p.Text, i)
		if err != nil {
			return fmt.Errorf("insert passage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func (r *PassageRepository) ListAll(ctx context.Context) ([]domain.Passage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, source, page, section, category, content
FROM passages
ORDER BY document_id, position
`)
	if err != nil {
		return nil, fmt.Errorf("list passages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Passage, 0)
	for rows.Next() {
		var p domain.Passage
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Source, &p.Page, &p.Section, &p.Category, &p.Text); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}
	return out, nil
}
