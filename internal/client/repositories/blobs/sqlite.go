// Package blobs stores compressed attachment payloads, keyed by source
// reference, independent of record storage.
package blobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkravcenko/plotkeeper/internal/client/models"
	"github.com/dkravcenko/plotkeeper/internal/common"
	"github.com/dkravcenko/plotkeeper/internal/dbx"
)

type Repository interface {
	// GetBySourceRef returns a cached blob or common.ErrNotFound.
	GetBySourceRef(ctx context.Context, sourceRef string) (*models.AttachmentBlob, error)

	// Put upserts a blob by source reference.
	Put(ctx context.Context, blob *models.AttachmentBlob) error

	// Evict removes the oldest blobs (by cached_at) until at most max remain.
	// Returns how many were removed.
	Evict(ctx context.Context, max int) (int, error)

	// Count reports the number of cached blobs.
	Count(ctx context.Context) (int, error)

	// Clear removes every cached blob.
	Clear(ctx context.Context) error
}

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetBySourceRef(ctx context.Context, sourceRef string) (*models.AttachmentBlob, error) {
	query := `SELECT id, source_ref, data, content_type, width, height, cached_at
			FROM attachment_cache WHERE source_ref = ?`
	row := r.db.QueryRowContext(ctx, query, sourceRef)

	var (
		b        models.AttachmentBlob
		cachedAt string
	)
	err := row.Scan(&b.ID, &b.SourceRef, &b.Data, &b.ContentType, &b.Width, &b.Height, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %q: %w", sourceRef, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select blob: %w", err)
	}

	if b.CachedAt, err = models.ParseTime(cachedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, blob *models.AttachmentBlob) error {
	query := `INSERT INTO attachment_cache (id, source_ref, data, content_type, width, height, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source_ref) DO UPDATE SET data = excluded.data,
				content_type = excluded.content_type,
				width = excluded.width,
				height = excluded.height,
				cached_at = excluded.cached_at
	`
	_, err := r.db.ExecContext(ctx, query,
		blob.ID, blob.SourceRef, blob.Data, blob.ContentType, blob.Width, blob.Height, models.EncodeTime(blob.CachedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert blob: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Evict(ctx context.Context, max int) (int, error) {
	if max < 0 {
		max = 0
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM attachment_cache WHERE id NOT IN (
			SELECT id FROM attachment_cache ORDER BY cached_at DESC, id DESC LIMIT ?
		)
	`, max)
	if err != nil {
		return 0, fmt.Errorf("failed to evict blobs: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(ra), nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attachment_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count blobs: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachment_cache`); err != nil {
		return fmt.Errorf("failed to clear blobs: %w", err)
	}
	return nil
}
