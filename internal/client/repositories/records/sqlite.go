// Package records implements the local store over SQLite.
//
// Every entity type gets its own `<table>_cache` table with the same four
// columns: id, fields (JSON text), updated_at, sync_status. The fields column
// is encoded and decoded at this boundary, so array- and object-valued fields
// survive the round trip as real values.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/dkravcenko/plotkeeper/internal/client/models"
	"github.com/dkravcenko/plotkeeper/internal/common"
	"github.com/dkravcenko/plotkeeper/internal/dbx"
)

var tableNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db     dbx.DBTX
	tables map[string]struct{}
}

// NewSQLiteRepository returns a repository bound to db, restricted to the
// given entity tables. Table names are interpolated into SQL identifiers, so
// anything outside the allowlist is rejected with common.ErrUnknownTable.
func NewSQLiteRepository(db dbx.DBTX, tables []string) *SQLiteRepository {
	allowed := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		allowed[t] = struct{}{}
	}
	return &SQLiteRepository{db: db, tables: allowed}
}

func (r *SQLiteRepository) cacheTable(table string) (string, error) {
	if _, ok := r.tables[table]; !ok || !tableNameRe.MatchString(table) {
		return "", fmt.Errorf("table %q: %w", table, common.ErrUnknownTable)
	}
	return table + "_cache", nil
}

// Put upserts a record by id and returns the stored copy.
func (r *SQLiteRepository) Put(ctx context.Context, table string, rec *models.CachedRecord) (*models.CachedRecord, error) {
	name, err := r.cacheTable(table)
	if err != nil {
		return nil, err
	}

	stored := *rec
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	if stored.SyncStatus == "" {
		stored.SyncStatus = models.SyncStatusSynced
	}

	encoded, err := stored.Fields.Encode()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, fields, updated_at, sync_status)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET fields = excluded.fields,
				updated_at = excluded.updated_at,
				sync_status = excluded.sync_status
	`, name)
	_, err = r.db.ExecContext(ctx, query, stored.ID, encoded, models.EncodeTime(stored.UpdatedAt), string(stored.SyncStatus))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert record: %w", err)
	}
	return &stored, nil
}

// Get returns one record by id.
func (r *SQLiteRepository) Get(ctx context.Context, table string, id string) (*models.CachedRecord, error) {
	name, err := r.cacheTable(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, fields, updated_at, sync_status FROM %s WHERE id = ?`, name)
	row := r.db.QueryRowContext(ctx, query, id)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s/%s: %w", table, id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select record: %w", err)
	}
	return rec, nil
}

// GetAll returns the full table contents, newest first.
func (r *SQLiteRepository) GetAll(ctx context.Context, table string) ([]models.CachedRecord, error) {
	name, err := r.cacheTable(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, fields, updated_at, sync_status FROM %s ORDER BY updated_at DESC, id`, name)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []models.CachedRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a record by id.
func (r *SQLiteRepository) Delete(ctx context.Context, table string, id string) error {
	name, err := r.cacheTable(table)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, name), id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("record %s/%s: %w", table, id, common.ErrNotFound)
	}
	return nil
}

// Clear drops every cached row of the table.
func (r *SQLiteRepository) Clear(ctx context.Context, table string) error {
	name, err := r.cacheTable(table)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, name)); err != nil {
		return fmt.Errorf("failed to clear table: %w", err)
	}
	return nil
}

func scanRecord(scan func(dest ...any) error) (*models.CachedRecord, error) {
	var (
		rec       models.CachedRecord
		encoded   string
		updatedAt string
		status    string
	)
	if err := scan(&rec.ID, &encoded, &updatedAt, &status); err != nil {
		return nil, err
	}

	fields, err := models.DecodeFields(encoded)
	if err != nil {
		return nil, err
	}
	rec.Fields = fields

	ts, err := models.ParseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	rec.UpdatedAt = ts
	rec.SyncStatus = models.SyncStatus(status)
	return &rec, nil
}
