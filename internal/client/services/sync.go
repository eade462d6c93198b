package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dkravcenko/plotkeeper/internal/client/client"
	"github.com/dkravcenko/plotkeeper/internal/client/models"
	"github.com/dkravcenko/plotkeeper/internal/common"
	"github.com/dkravcenko/plotkeeper/internal/logging"
)

// SyncStats summarizes one sync run. A run is best-effort: partial failures
// are counted here and logged, never returned as errors.
type SyncStats struct {
	Pushed       int // mutations confirmed and removed from the queue
	PushFailed   int // mutations that failed and stay queued
	DeadLettered int // mutations dropped after exhausting retries
	Pulled       int // records received across all tables
	Applied      int // records where the remote version won and was stored
	Skipped      int // records where the local version won
}

// SyncService drains the mutation queue to the server (push), then refreshes
// the local store per table (pull). At most one run is active at a time.
type SyncService struct {
	repos      *client.Repositories
	remote     client.Remote
	monitor    Connectivity
	logger     logging.Logger
	maxRetries int
	interval   time.Duration

	syncing      atomic.Bool
	deadLettered atomic.Int64
	kick         chan struct{}
}

// NewSyncService wires the orchestrator. maxRetries is the number of retries
// after the first failed attempt; past it a mutation is dead-lettered.
func NewSyncService(repos *client.Repositories, remote client.Remote, monitor Connectivity, logger logging.Logger, maxRetries int, interval time.Duration) *SyncService {
	s := &SyncService{
		repos:      repos,
		remote:     remote,
		monitor:    monitor,
		logger:     logger,
		maxRetries: maxRetries,
		interval:   interval,
		kick:       make(chan struct{}, 1),
	}
	monitor.Subscribe(func(online bool) {
		if online {
			s.Trigger()
		}
	})
	return s
}

// Trigger requests a sync run from the Run loop without blocking. Multiple
// pending triggers coalesce into one.
func (s *SyncService) Trigger() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run executes SyncAll on every interval tick, on every offline->online
// transition, and on Trigger, until ctx is done.
func (s *SyncService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-s.kick:
		case <-ctx.Done():
			return
		}

		stats, err := s.SyncAll(ctx)
		switch {
		case errors.Is(err, common.ErrOffline), errors.Is(err, common.ErrSyncInProgress):
			s.logger.Debug(ctx, "sync skipped", "reason", err)
		case err != nil:
			s.logger.Error(ctx, "sync failed", "error", err)
		default:
			s.logger.Info(ctx, "sync complete",
				"pushed", stats.Pushed, "push_failed", stats.PushFailed,
				"dead_lettered", stats.DeadLettered,
				"pulled", stats.Pulled, "applied", stats.Applied, "skipped", stats.Skipped)
		}
	}
}

// SyncAll performs one full run: online check, push phase, pull phase.
// It returns common.ErrSyncInProgress when a run is already active and
// common.ErrOffline when the monitor reports no connectivity; otherwise it
// always completes and reports what it could and could not do.
func (s *SyncService) SyncAll(ctx context.Context) (*SyncStats, error) {
	if !s.syncing.CompareAndSwap(false, true) {
		return nil, common.ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	if !s.monitor.IsOnline() {
		return nil, common.ErrOffline
	}

	stats := &SyncStats{}
	s.push(ctx, stats)
	s.pull(ctx, stats)
	return stats, nil
}

// ProcessQueueOnce runs exactly one push pass without the pull phase. It is
// the diagnostic entry point and does not consult the connectivity monitor;
// a dead remote simply bumps retries.
func (s *SyncService) ProcessQueueOnce(ctx context.Context) (*SyncStats, error) {
	if !s.syncing.CompareAndSwap(false, true) {
		return nil, common.ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	stats := &SyncStats{}
	s.push(ctx, stats)
	return stats, nil
}

// DeadLetterCount reports how many mutations were dropped since startup.
// Each one is a change the user believes succeeded, so it is kept observable.
func (s *SyncService) DeadLetterCount() int64 {
	return s.deadLettered.Load()
}

// push drains the queue in creation order. One failing item never aborts the
// pass; it is retried on the next run until MaxRetries is exhausted.
func (s *SyncService) push(ctx context.Context, stats *SyncStats) {
	pending, err := s.repos.Mutations.ListPending(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to list pending mutations", "error", err)
		return
	}

	for i := range pending {
		m := &pending[i]

		if err := s.apply(ctx, m); err != nil {
			s.logger.Warn(ctx, "mutation push failed",
				"mutation_id", m.ID, "table", m.Table, "op", string(m.Op),
				"retry_count", m.RetryCount, "error", err)

			if bumpErr := s.repos.Mutations.BumpRetry(ctx, m.ID, err.Error()); bumpErr != nil {
				s.logger.Error(ctx, "failed to bump retry", "mutation_id", m.ID, "error", bumpErr)
				continue
			}

			if m.RetryCount+1 > s.maxRetries {
				s.deadLetter(ctx, m, stats)
				continue
			}
			stats.PushFailed++
			continue
		}

		if err := s.repos.Mutations.Remove(ctx, m.ID); err != nil {
			s.logger.Error(ctx, "failed to remove confirmed mutation", "mutation_id", m.ID, "error", err)
			continue
		}
		stats.Pushed++
	}
}

// apply replays one mutation against the server and, on success, marks the
// cached record synced.
func (s *SyncService) apply(ctx context.Context, m *models.Mutation) error {
	recordID, err := m.RecordID()
	if err != nil {
		return err
	}

	var confirmed *models.CachedRecord
	switch m.Op {
	case models.OpInsert:
		confirmed, err = s.remote.Insert(ctx, m.Table, m.ID, m.Payload)
	case models.OpUpdate:
		confirmed, err = s.remote.Update(ctx, m.Table, recordID, m.Payload)
	case models.OpDelete:
		err = s.remote.Delete(ctx, m.Table, recordID)
	default:
		err = common.ErrUnknownOperation
	}
	if err != nil {
		return err
	}

	if confirmed != nil {
		confirmed.SyncStatus = models.SyncStatusSynced
		if _, err := s.repos.Records.Put(ctx, m.Table, confirmed); err != nil {
			// The server has the change; failing to refresh the cache must
			// not resurrect the mutation. The next pull reconciles it.
			s.logger.Warn(ctx, "failed to store confirmed record", "table", m.Table, "record_id", confirmed.ID, "error", err)
		}
	}
	return nil
}

func (s *SyncService) deadLetter(ctx context.Context, m *models.Mutation, stats *SyncStats) {
	if err := s.repos.Mutations.Remove(ctx, m.ID); err != nil {
		s.logger.Error(ctx, "failed to remove dead-lettered mutation", "mutation_id", m.ID, "error", err)
		return
	}
	stats.DeadLettered++
	s.deadLettered.Add(1)
	s.logger.Error(ctx, "mutation dead-lettered after exhausting retries",
		"mutation_id", m.ID, "table", m.Table, "op", string(m.Op), "last_error", m.LastError)
}

// pull fetches records newer than each table's cursor, reconciles them
// against the cache, and advances the cursor. Tables are independent: a
// failing table is logged and skipped.
func (s *SyncService) pull(ctx context.Context, stats *SyncStats) {
	for _, table := range s.repos.Tables {
		cursor, err := s.repos.Cursors.Get(ctx, table)
		if err != nil {
			s.logger.Error(ctx, "failed to read cursor", "table", table, "error", err)
			continue
		}

		incoming, newCursor, err := s.remote.Pull(ctx, table, cursor)
		if err != nil {
			s.logger.Warn(ctx, "pull failed", "table", table, "error", err)
			continue
		}
		stats.Pulled += len(incoming)

		storeFailed := false
		for i := range incoming {
			remote := &incoming[i]

			local, err := s.repos.Records.Get(ctx, table, remote.ID)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				s.logger.Error(ctx, "failed to read cached record", "table", table, "record_id", remote.ID, "error", err)
				storeFailed = true
				continue
			}
			if errors.Is(err, common.ErrNotFound) {
				local = nil
			}

			winner := Resolve(local, remote)
			if winner != remote {
				// Local copy stands, typically a newer still-pending edit;
				// it supersedes the remote version until it syncs out.
				stats.Skipped++
				continue
			}

			remote.SyncStatus = models.SyncStatusSynced
			if _, err := s.repos.Records.Put(ctx, table, remote); err != nil {
				s.logger.Error(ctx, "failed to store pulled record", "table", table, "record_id", remote.ID, "error", err)
				storeFailed = true
				continue
			}
			stats.Applied++
		}

		// A record that failed to store would never be re-pulled if the
		// cursor moved past it; keep the cursor so the next pull retries
		// the whole batch.
		if storeFailed {
			continue
		}

		if newCursor != "" && newCursor != cursor {
			if err := s.repos.Cursors.Set(ctx, table, newCursor); err != nil {
				s.logger.Error(ctx, "failed to advance cursor", "table", table, "error", err)
			}
		}
	}
}
