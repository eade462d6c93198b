package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dkravcenko/plotkeeper/internal/client/migrations"
	"github.com/dkravcenko/plotkeeper/internal/client/repositories/blobs"
	"github.com/dkravcenko/plotkeeper/internal/client/repositories/cursors"
	"github.com/dkravcenko/plotkeeper/internal/client/repositories/mutations"
	"github.com/dkravcenko/plotkeeper/internal/client/repositories/records"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories bundles the storage layer handed to services. DB is exposed
// so services can compose repository calls inside one dbx.WithTx.
type Repositories struct {
	DB        *sql.DB
	Tables    []string
	Records   records.Repository
	Mutations mutations.Repository
	Cursors   cursors.Repository
	Blobs     blobs.Repository
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite database at dsn, applies migrations, and
// returns the repository set restricted to the given entity tables.
//
// A single connection is kept open so writes stay serialized; with WAL mode
// that is enough to satisfy the engine's single-writer model.
func InitDatabase(ctx context.Context, dsn string, tables []string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode = WAL`, `PRAGMA foreign_keys = ON`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:        db,
		Tables:    tables,
		Records:   records.NewSQLiteRepository(db, tables),
		Mutations: mutations.NewSQLiteRepository(db),
		Cursors:   cursors.NewSQLiteRepository(db),
		Blobs:     blobs.NewSQLiteRepository(db),
	}, nil
}

// Close releases the underlying database handle.
func (r *Repositories) Close() error {
	return r.DB.Close()
}
