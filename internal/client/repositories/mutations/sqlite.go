// Package mutations implements the durable mutation queue over SQLite.
//
// The queue is a single flat table keyed by the client-generated mutation id;
// processing order is creation order, which preserves per-table FIFO (an
// UPDATE is never replayed before the INSERT it depends on).
package mutations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dkravcenko/plotkeeper/internal/client/models"
	"github.com/dkravcenko/plotkeeper/internal/common"
	"github.com/dkravcenko/plotkeeper/internal/dbx"
	"github.com/google/uuid"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a queue bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Enqueue appends a pending write with retry_count = 0 and returns its id.
func (r *SQLiteRepository) Enqueue(ctx context.Context, table string, op models.Operation, payload models.Fields) (string, error) {
	if _, err := models.ParseOperation(string(op)); err != nil {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownOperation, op)
	}

	encoded, err := payload.Encode()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	query := `INSERT INTO mutation_queue (id, table_name, operation, payload, created_at, retry_count)
			VALUES (?, ?, ?, ?, ?, 0)`
	_, err = r.db.ExecContext(ctx, query, id, table, string(op), encoded, models.EncodeTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue mutation: %w", err)
	}
	return id, nil
}

// ListPending returns all queued mutations, oldest first.
func (r *SQLiteRepository) ListPending(ctx context.Context) ([]models.Mutation, error) {
	query := `SELECT id, table_name, operation, payload, created_at, retry_count, last_retry_at, last_error
			FROM mutation_queue ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select mutations: %w", err)
	}
	defer rows.Close()

	var result []models.Mutation
	for rows.Next() {
		var (
			m           models.Mutation
			op          string
			payload     string
			createdAt   string
			lastRetryAt sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Table, &op, &payload, &createdAt, &m.RetryCount, &lastRetryAt, &m.LastError); err != nil {
			return nil, err
		}

		m.Op, err = models.ParseOperation(op)
		if err != nil {
			return nil, err
		}
		if m.Payload, err = models.DecodeFields(payload); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = models.ParseTime(createdAt); err != nil {
			return nil, err
		}
		if lastRetryAt.Valid {
			ts, err := models.ParseTime(lastRetryAt.String)
			if err != nil {
				return nil, err
			}
			m.LastRetryAt = &ts
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Remove deletes a mutation by id.
func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mutation_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove mutation: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("mutation %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// BumpRetry increments retry_count and records the failure time and message.
func (r *SQLiteRepository) BumpRetry(ctx context.Context, id string, lastError string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mutation_queue
		SET retry_count = retry_count + 1, last_retry_at = ?, last_error = ?
		WHERE id = ?
	`, models.EncodeTime(time.Now()), lastError, id)
	if err != nil {
		return fmt.Errorf("failed to bump retry: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("mutation %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// Len reports the number of queued mutations.
func (r *SQLiteRepository) Len(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutation_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count mutations: %w", err)
	}
	return n, nil
}
