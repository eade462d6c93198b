package client

import (
	"context"

	"github.com/dkravcenko/plotkeeper/internal/client/models"
)

// Remote is the backend as seen by the sync engine: an opaque collaborator
// reachable only while online.
//
// Insert carries the mutation's client-generated id so the server can
// deduplicate a replayed mutation; implementations must treat an
// "already applied" response as success.
type Remote interface {
	// Ping reports reachability; used by the connectivity monitor.
	Ping(ctx context.Context) error

	// Pull returns records of the table changed since the cursor, plus the
	// cursor to store for the next pull.
	Pull(ctx context.Context, table string, sinceCursor string) ([]models.CachedRecord, string, error)

	// Insert creates a record and returns the confirmed copy.
	Insert(ctx context.Context, table string, clientID string, payload models.Fields) (*models.CachedRecord, error)

	// Update replaces a record and returns the confirmed copy.
	Update(ctx context.Context, table string, id string, payload models.Fields) (*models.CachedRecord, error)

	// Delete removes a record. Deleting an already-deleted record succeeds.
	Delete(ctx context.Context, table string, id string) error
}
