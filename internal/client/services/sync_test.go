package services

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkravcenko/plotkeeper/internal/client/client"
	"github.com/dkravcenko/plotkeeper/internal/client/models"
	"github.com/dkravcenko/plotkeeper/internal/client/repositories/records"
	"github.com/dkravcenko/plotkeeper/internal/common"
	"github.com/dkravcenko/plotkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepos(t *testing.T) *client.Repositories {
	t.Helper()
	repos, err := client.InitDatabase(context.Background(),
		filepath.Join(t.TempDir(), "cache.db"),
		[]string{"diary_entries", "posts"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	return repos
}

type remoteCall struct {
	Method   string
	Table    string
	RecordID string
	ClientID string
}

// fakeRemote records calls in order and can be told to fail.
type fakeRemote struct {
	mu    sync.Mutex
	calls []remoteCall

	failNext      int   // fail this many calls, then succeed
	failAlways    bool  // fail every push call
	pingErr       error // returned by Ping
	blockInsert   chan struct{} // when set, Insert blocks until closed
	insertEntered chan struct{} // when set (buffered), Insert signals on entry

	pullRecords map[string][]models.CachedRecord
	pullCursor  map[string]string
}

func (f *fakeRemote) record(c remoteCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeRemote) shouldFail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAlways {
		return true
	}
	if f.failNext > 0 {
		f.failNext--
		return true
	}
	return false
}

func (f *fakeRemote) recorded() []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remoteCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeRemote) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeRemote) Pull(ctx context.Context, table string, sinceCursor string) ([]models.CachedRecord, string, error) {
	return f.pullRecords[table], f.pullCursor[table], nil
}

func (f *fakeRemote) Insert(ctx context.Context, table string, clientID string, payload models.Fields) (*models.CachedRecord, error) {
	if f.insertEntered != nil {
		select {
		case f.insertEntered <- struct{}{}:
		default:
		}
	}
	if f.blockInsert != nil {
		<-f.blockInsert
	}
	if f.shouldFail() {
		return nil, client.ErrUnavailable
	}
	id, _ := payload.StringValue("id")
	f.record(remoteCall{Method: "insert", Table: table, RecordID: id, ClientID: clientID})
	return &models.CachedRecord{ID: id, Fields: payload, UpdatedAt: time.Now().UTC()}, nil
}

func (f *fakeRemote) Update(ctx context.Context, table string, id string, payload models.Fields) (*models.CachedRecord, error) {
	if f.shouldFail() {
		return nil, client.ErrUnavailable
	}
	f.record(remoteCall{Method: "update", Table: table, RecordID: id})
	return &models.CachedRecord{ID: id, Fields: payload, UpdatedAt: time.Now().UTC()}, nil
}

func (f *fakeRemote) Delete(ctx context.Context, table string, id string) error {
	if f.shouldFail() {
		return client.ErrUnavailable
	}
	f.record(remoteCall{Method: "delete", Table: table, RecordID: id})
	return nil
}

type fakeConnectivity struct {
	online atomic.Bool

	mu   sync.Mutex
	subs []func(bool)
}

func (f *fakeConnectivity) IsOnline() bool { return f.online.Load() }

func (f *fakeConnectivity) Subscribe(fn func(online bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
}

func (f *fakeConnectivity) set(online bool) {
	f.online.Store(online)
	f.mu.Lock()
	subs := make([]func(bool), len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(online)
	}
}

func newSyncService(t *testing.T, repos *client.Repositories, remote *fakeRemote, monitor *fakeConnectivity) *SyncService {
	t.Helper()
	if monitor == nil {
		monitor = &fakeConnectivity{}
		monitor.online.Store(true)
	}
	return NewSyncService(repos, remote, monitor, logging.NewNoopLogger(), 3, time.Minute)
}

func TestProcessQueueOnce_DrainsQueue(t *testing.T) {
	repos := setupRepos(t)
	remote := &fakeRemote{}
	svc := newSyncService(t, repos, remote, nil)
	ctx := context.Background()

	for _, id := range []string{"d1", "d2", "d3"} {
		_, err := repos.Mutations.Enqueue(ctx, "diary_entries", models.OpInsert, models.Fields{"id": id})
		require.NoError(t, err)
	}

	n, err := repos.Mutations.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n, "mutations must be durable before processing")

	stats, err := svc.ProcessQueueOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pushed)

	n, err = repos.Mutations.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, remote.recorded(), 3)
}

func TestProcessQueueOnce_PerTableFIFO(t *testing.T) {
	repos := setupRepos(t)
	remote := &fakeRemote{}
	svc := newSyncService(t, repos, remote, nil)
	ctx := context.Background()

	_, err := repos.Mutations.Enqueue(ctx, "diary_entries", models.OpInsert, models.Fields{"id": "a"})
	require.NoError(t, err)
	_, err = repos.Mutations.Enqueue(ctx, "diary_entries", models.OpUpdate, models.Fields{"id": "a", "title": "v2"})
	require.NoError(t, err)

	_, err = svc.ProcessQueueOnce(ctx)
	require.NoError(t, err)

	calls := remote.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "insert", calls[0].Method, "the INSERT must reach the server before the UPDATE that depends on it")
	assert.Equal(t, "update", calls[1].Method)
	assert.Equal(t, "a", calls[0].RecordID)
	assert.Equal(t, "a", calls[1].RecordID)
}

func TestProcessQueueOnce_IdempotentRetry(t *testing.T) {
	repos := setupRepos(t)
	remote := &fakeRemote{failNext: 1}
	svc := newSyncService(t, repos, remote, nil)
	ctx := context.Background()

	_, err := repos.Mutations.Enqueue(ctx, "diary_entries", models.OpInsert, models.Fields{"id": "d1"})
	require.NoError(t, err)

	stats, err := svc.ProcessQueueOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pushed)
	assert.Equal(t, 1, stats.PushFailed)

	pending, err := repos.Mutations.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1, "failed mutation stays queued")
	assert.Equal(t, 1, pending[0].RetryCount)

	stats, err = svc.ProcessQueueOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pushed)

	n, err := repos.Mutations.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, remote.recorded(), 1, "exactly one successful application, no duplicates")
}

func TestProcessQueueOnce_DeadLetterBound(t *testing.T) {
	repos := setupRepos(t)
	remote := &fakeRemote{failAlways: true}
	svc := newSyncService(t, repos, remote, nil)
	ctx := context.Background()

	_, err := repos.Mutations.Enqueue(ctx, "posts", models.OpInsert, models.Fields{"id": "p1"})
	require.NoError(t, err)

	// attempts 1..3 bump the retry counter
	for i := 0; i < 3; i++ {
		stats, err := svc.ProcessQueueOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.PushFailed)
		assert.Equal(t, 0, stats.DeadLettered)
	}

	// attempt 4 exceeds maxRetries and dead-letters the item
	stats, err := svc.ProcessQueueOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DeadLettered)

	n, err := repos.Mutations.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "dead-lettered mutation must not be retried indefinitely")
	assert.EqualValues(t, 1, svc.DeadLetterCount())

	// nothing left for a further pass
	stats, err = svc.ProcessQueueOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PushFailed+stats.DeadLettered+stats.Pushed)
}

func TestSyncAll_OfflineAborts(t *testing.T) {
	repos := setupRepos(t)
	remote := &fakeRemote{}
	monitor := &fakeConnectivity{}
	svc := newSyncService(t, repos, remote, monitor)
	ctx := context.Background()

	_, err := repos.Mutations.Enqueue(ctx, "diary_entries", models.OpInsert, models.Fields{"id": "d1"})
	require.NoError(t, err)

	_, err = svc.SyncAll(ctx)
	assert.ErrorIs(t, err, common.ErrOffline)

	n, err := repos.Mutations.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "offline run must leave the queue untouched")
	assert.Empty(t, remote.recorded())
}

func TestOfflineToOnlineScenario(t *testing.T) {
	repos := setupRepos(t)
	remote := &fakeRemote{}
	monitor := &fakeConnectivity{}
	svc := newSyncService(t, repos, remote, monitor)
	recordSvc := NewRecordService(repos, logging.NewNoopLogger())
	ctx := context.Background()

	// offline local write
	require.False(t, monitor.IsOnline())
	_, err := recordSvc.Write(ctx, "diary_entries", models.OpInsert, models.Fields{"id": "d1", "title": "Dev Diary"})
	require.NoError(t, err)

	n, err := repos.Mutations.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// back online
	monitor.set(true)

	stats, err := svc.ProcessQueueOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pushed)

	n, err = repos.Mutations.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	calls := remote.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, remoteCall{Method: "insert", Table: "diary_entries", RecordID: "d1", ClientID: calls[0].ClientID}, calls[0])
	assert.NotEmpty(t, calls[0].ClientID)
}

func TestSyncAll_PullReconcilesAndAdvancesCursor(t *testing.T) {
	repos := setupRepos(t)

	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	remote := &fakeRemote{
		pullRecords: map[string][]models.CachedRecord{
			"diary_entries": {
				{ID: "newer-remote", Fields: models.Fields{"v": "remote"}, UpdatedAt: t2},
				{ID: "older-remote", Fields: models.Fields{"v": "remote"}, UpdatedAt: t1},
				{ID: "brand-new", Fields: models.Fields{"v": "remote"}, UpdatedAt: t2},
			},
		},
		pullCursor: map[string]string{"diary_entries": t2.Format(time.RFC3339)},
	}
	svc := newSyncService(t, repos, remote, nil)
	ctx := context.Background()

	// cached copies: one older than the incoming version, one newer
	_, err := repos.Records.Put(ctx, "diary_entries", &models.CachedRecord{
		ID: "newer-remote", Fields: models.Fields{"v": "local"}, UpdatedAt: t1, SyncStatus: models.SyncStatusSynced,
	})
	require.NoError(t, err)
	_, err = repos.Records.Put(ctx, "diary_entries", &models.CachedRecord{
		ID: "older-remote", Fields: models.Fields{"v": "local"}, UpdatedAt: t2, SyncStatus: models.SyncStatusPending,
	})
	require.NoError(t, err)

	stats, err := svc.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pulled)
	assert.Equal(t, 2, stats.Applied)
	assert.Equal(t, 1, stats.Skipped)

	got, err := repos.Records.Get(ctx, "diary_entries", "newer-remote")
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Fields["v"], "newer remote version must replace the cached copy")
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)

	got, err = repos.Records.Get(ctx, "diary_entries", "older-remote")
	require.NoError(t, err)
	assert.Equal(t, "local", got.Fields["v"], "newer local pending edit must survive the pull")
	assert.Equal(t, models.SyncStatusPending, got.SyncStatus)

	got, err = repos.Records.Get(ctx, "diary_entries", "brand-new")
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Fields["v"])

	cursor, err := repos.Cursors.Get(ctx, "diary_entries")
	require.NoError(t, err)
	assert.Equal(t, t2.Format(time.RFC3339), cursor)
}

func TestSyncAll_RejectsConcurrentRuns(t *testing.T) {
	repos := setupRepos(t)
	remote := &fakeRemote{
		blockInsert:   make(chan struct{}),
		insertEntered: make(chan struct{}, 1),
	}
	svc := newSyncService(t, repos, remote, nil)
	ctx := context.Background()

	_, err := repos.Mutations.Enqueue(ctx, "diary_entries", models.OpInsert, models.Fields{"id": "d1"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.SyncAll(ctx)
	}()

	// wait until the first run holds the guard inside the push phase
	select {
	case <-remote.insertEntered:
	case <-time.After(time.Second):
		t.Fatal("first run never reached the push phase")
	}

	_, err = svc.SyncAll(ctx)
	require.ErrorIs(t, err, common.ErrSyncInProgress)

	close(remote.blockInsert)
	<-done

	// guard released, a new run is accepted again
	_, err = svc.SyncAll(ctx)
	require.NoError(t, err)
}

func TestRun_OnlineTransitionTriggersSync(t *testing.T) {
	repos := setupRepos(t)
	remote := &fakeRemote{}
	monitor := &fakeConnectivity{}
	svc := NewSyncService(repos, remote, monitor, logging.NewNoopLogger(), 3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	_, err := repos.Mutations.Enqueue(ctx, "diary_entries", models.OpInsert, models.Fields{"id": "d1"})
	require.NoError(t, err)

	go svc.Run(ctx)

	monitor.set(true)

	require.Eventually(t, func() bool {
		n, err := repos.Mutations.Len(context.Background())
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond, "coming online must trigger an immediate sync")
}

func TestSyncAll_StorageFailureKeepsCursor(t *testing.T) {
	base := setupRepos(t)

	// "settings" passes the table allowlist but has no cache table behind
	// it, so every store of a pulled record fails.
	tables := []string{"diary_entries", "settings"}
	repos := &client.Repositories{
		DB:        base.DB,
		Tables:    tables,
		Records:   records.NewSQLiteRepository(base.DB, tables),
		Mutations: base.Mutations,
		Cursors:   base.Cursors,
		Blobs:     base.Blobs,
	}

	t1 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	remote := &fakeRemote{
		pullRecords: map[string][]models.CachedRecord{
			"diary_entries": {{ID: "d1", Fields: models.Fields{"v": "x"}, UpdatedAt: t1}},
			"settings":      {{ID: "s1", Fields: models.Fields{"v": "x"}, UpdatedAt: t1}},
		},
		pullCursor: map[string]string{
			"diary_entries": "cursor-diary",
			"settings":      "cursor-settings",
		},
	}
	svc := newSyncService(t, repos, remote, nil)
	ctx := context.Background()

	stats, err := svc.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pulled)
	assert.Equal(t, 1, stats.Applied)

	cursor, err := repos.Cursors.Get(ctx, "diary_entries")
	require.NoError(t, err)
	assert.Equal(t, "cursor-diary", cursor)

	cursor, err = repos.Cursors.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, "", cursor, "cursor must not move past a record that was never stored")
}
