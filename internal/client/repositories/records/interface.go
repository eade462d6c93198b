package records

import (
	"context"

	"github.com/dkravcenko/plotkeeper/internal/client/models"
)

// Repository is the local store: one cache table per entity type, upserted by
// primary key. Implementations own the `<table>_cache` SQL tables; nothing
// else reads or writes them directly.
type Repository interface {
	// Put upserts a record by id and returns the stored copy. A zero
	// UpdatedAt is filled with the current time.
	Put(ctx context.Context, table string, rec *models.CachedRecord) (*models.CachedRecord, error)

	// Get returns one record or common.ErrNotFound.
	Get(ctx context.Context, table string, id string) (*models.CachedRecord, error)

	// GetAll returns the full table contents ordered by updated_at descending.
	GetAll(ctx context.Context, table string) ([]models.CachedRecord, error)

	// Delete removes a record; common.ErrNotFound when no row matched.
	Delete(ctx context.Context, table string, id string) error

	// Clear drops every cached row of the table.
	Clear(ctx context.Context, table string) error
}
