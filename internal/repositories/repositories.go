// package repositories provides sqlite persistence for serialized collections and document snapshots.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBlobNotFound is returned when no value is stored under a key.
var ErrBlobNotFound = errors.New("blob not found")

// BlobRepository stores opaque values keyed by string in the blobs table.
type BlobRepository struct {
	db *sql.DB
}

// NewBlobRepository creates a new [BlobRepository] with the given database connection
func NewBlobRepository(db *sql.DB) *BlobRepository {
	return &BlobRepository{db: db}
}

// Get returns the value stored under key, or [ErrBlobNotFound].
func (r *BlobRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, "SELECT value FROM blobs WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query blob %s: %w", key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (r *BlobRepository) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO blobs (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	now := time.Now()
	if _, err := r.db.ExecContext(ctx, query, key, value, now, now); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *BlobRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM blobs WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// BlobKey joins a collection name and an owner key into a storage key.
func BlobKey(collection, owner string) string {
	return collection + "_" + strings.TrimSpace(owner)
}
