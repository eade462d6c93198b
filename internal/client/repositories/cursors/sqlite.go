// Package cursors stores the per-table last-successful-pull marker.
// Cursors are opaque strings owned by the sync engine.
package cursors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkravcenko/plotkeeper/internal/client/models"
	"github.com/dkravcenko/plotkeeper/internal/dbx"
)

type Repository interface {
	// Get returns the cursor for a table, or "" when the table has never
	// been pulled.
	Get(ctx context.Context, table string) (string, error)

	// Set advances the cursor for a table.
	Set(ctx context.Context, table string, cursor string) error

	// All returns every stored cursor keyed by table.
	All(ctx context.Context) (map[string]string, error)
}

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, table string) (string, error) {
	var cursor string
	err := r.db.QueryRowContext(ctx, `SELECT cursor FROM sync_cursors WHERE table_name = ?`, table).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor[%s]: %w", table, err)
	}
	return cursor, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, table string, cursor string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (table_name, cursor, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at
	`, table, cursor, models.EncodeTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set cursor[%s]: %w", table, err)
	}
	return nil
}

func (r *SQLiteRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT table_name, cursor FROM sync_cursors`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var table, cursor string
		if err := rows.Scan(&table, &cursor); err != nil {
			return nil, fmt.Errorf("failed to scan cursor row: %w", err)
		}
		result[table] = cursor
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cursor rows: %w", err)
	}
	return result, nil
}
