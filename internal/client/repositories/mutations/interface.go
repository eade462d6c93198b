package mutations

import (
	"context"

	"github.com/dkravcenko/plotkeeper/internal/client/models"
)

// Repository is the durable mutation queue: every write made locally is
// appended here and stays until the server confirms it (or it is
// dead-lettered by the sync engine).
type Repository interface {
	// Enqueue appends a pending write and returns its generated id.
	// Never touches the network; fails only on local storage errors.
	Enqueue(ctx context.Context, table string, op models.Operation, payload models.Fields) (string, error)

	// ListPending returns all queued mutations ordered by creation time.
	ListPending(ctx context.Context) ([]models.Mutation, error)

	// Remove deletes a confirmed (or dead-lettered) mutation.
	Remove(ctx context.Context, id string) error

	// BumpRetry increments the retry counter and records the failure.
	BumpRetry(ctx context.Context, id string, lastError string) error

	// Len reports the number of queued mutations.
	Len(ctx context.Context) (int, error)
}
