package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Document is a named snapshot body with a monotonically increasing revision.
type Document struct {
	Name      string
	Body      []byte
	Revision  int64
	UpdatedAt time.Time
}

// DocumentRepository persists document store snapshots.
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a new [DocumentRepository] with the given database connection
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Load returns the snapshot stored under name. A missing snapshot yields (nil, nil).
func (r *DocumentRepository) Load(ctx context.Context, name string) (*Document, error) {
	query := `SELECT name, body, revision, updated_at FROM documents WHERE name = ?`

	var doc Document
	err := r.db.QueryRowContext(ctx, query, name).Scan(&doc.Name, &doc.Body, &doc.Revision, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", name, err)
	}
	return &doc, nil
}

// Save upserts a snapshot. Writes carrying a revision older than the stored one are ignored.
func (r *DocumentRepository) Save(ctx context.Context, doc Document) error {
	query := `
		INSERT INTO documents (name, body, revision, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, revision = excluded.revision, updated_at = excluded.updated_at
		WHERE excluded.revision >= documents.revision
	`

	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, query, doc.Name, doc.Body, doc.Revision, doc.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.Name, err)
	}
	return nil
}
