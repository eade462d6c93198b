package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkravcenko/plotkeeper/internal/client/client"
	"github.com/dkravcenko/plotkeeper/internal/client/models"
	"github.com/dkravcenko/plotkeeper/internal/client/repositories/mutations"
	"github.com/dkravcenko/plotkeeper/internal/client/repositories/records"
	"github.com/dkravcenko/plotkeeper/internal/common"
	"github.com/dkravcenko/plotkeeper/internal/dbx"
	"github.com/dkravcenko/plotkeeper/internal/logging"
	"github.com/google/uuid"
)

// RecordService is the caller-facing write and read API over the local
// store. Writes are local-first: the cache is updated so readers see the
// change immediately, and the matching mutation lands in the queue in the
// same transaction — one never exists without the other.
type RecordService struct {
	repos  *client.Repositories
	logger logging.Logger
}

func NewRecordService(repos *client.Repositories, logger logging.Logger) *RecordService {
	return &RecordService{repos: repos, logger: logger}
}

// Write applies op locally and enqueues it for the server. For INSERT, a
// missing record id is filled with a generated one. Returns the queued
// mutation id. No network access; Write succeeds offline.
func (s *RecordService) Write(ctx context.Context, table string, op models.Operation, payload models.Fields) (string, error) {
	if _, err := models.ParseOperation(string(op)); err != nil {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownOperation, op)
	}

	payload = payload.Clone()
	if payload == nil {
		payload = models.Fields{}
	}
	id, ok := payload.StringValue("id")
	if !ok || id == "" {
		if op != models.OpInsert {
			return "", fmt.Errorf("%s payload has no record id", op)
		}
		id = uuid.NewString()
		payload["id"] = id
	}

	var mutationID string
	err := dbx.WithTx(ctx, s.repos.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := records.NewSQLiteRepository(tx, s.repos.Tables)
		queue := mutations.NewSQLiteRepository(tx)

		switch op {
		case models.OpDelete:
			if err := recs.Delete(ctx, table, id); err != nil && !errors.Is(err, common.ErrNotFound) {
				return err
			}
		default:
			_, err := recs.Put(ctx, table, &models.CachedRecord{
				ID:         id,
				Fields:     payload,
				UpdatedAt:  time.Now().UTC(),
				SyncStatus: models.SyncStatusPending,
			})
			if err != nil {
				return err
			}
		}

		var err error
		mutationID, err = queue.Enqueue(ctx, table, op, payload)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("write %s %s: %w", op, table, err)
	}

	s.logger.Debug(ctx, "local write recorded", "table", table, "op", string(op), "record_id", id, "mutation_id", mutationID)
	return mutationID, nil
}

// Get returns one cached record.
func (s *RecordService) Get(ctx context.Context, table string, id string) (*models.CachedRecord, error) {
	return s.repos.Records.Get(ctx, table, id)
}

// List returns the cached contents of a table. Read failures degrade to an
// empty result with a logged warning; writes never degrade this way.
func (s *RecordService) List(ctx context.Context, table string) []models.CachedRecord {
	recs, err := s.repos.Records.GetAll(ctx, table)
	if err != nil {
		s.logger.Warn(ctx, "cache read failed, serving empty result", "table", table, "error", err)
		return nil
	}
	return recs
}

// Clear drops a table's cached rows. Queued mutations are untouched.
func (s *RecordService) Clear(ctx context.Context, table string) error {
	return s.repos.Records.Clear(ctx, table)
}
