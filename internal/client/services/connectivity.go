package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkravcenko/plotkeeper/internal/client/client"
	"github.com/dkravcenko/plotkeeper/internal/logging"
)

// Connectivity is the read-only reachability oracle the sync engine consults.
type Connectivity interface {
	IsOnline() bool
	Subscribe(fn func(online bool))
}

// ConnectivityMonitor probes the remote service on a fixed interval and
// notifies subscribers on offline<->online transitions. It never mutates any
// other component.
type ConnectivityMonitor struct {
	remote       client.Remote
	logger       logging.Logger
	interval     time.Duration
	probeTimeout time.Duration

	online atomic.Bool

	mu   sync.Mutex
	subs []func(online bool)
}

func NewConnectivityMonitor(remote client.Remote, logger logging.Logger, interval time.Duration) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		remote:       remote,
		logger:       logger,
		interval:     interval,
		probeTimeout: 3 * time.Second,
	}
}

// IsOnline reports the result of the most recent probe. Before the first
// probe the monitor reports offline.
func (m *ConnectivityMonitor) IsOnline() bool {
	return m.online.Load()
}

// Subscribe registers a callback invoked on every transition. Callbacks run
// on the monitor's goroutine and must not block.
func (m *ConnectivityMonitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Run probes immediately, then on every interval tick, until ctx is done.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Probe performs a single reachability check and records the outcome.
func (m *ConnectivityMonitor) Probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	err := m.remote.Ping(probeCtx)
	cancel()

	m.setOnline(ctx, err == nil)
}

func (m *ConnectivityMonitor) setOnline(ctx context.Context, online bool) {
	if m.online.Swap(online) == online {
		return
	}

	if online {
		m.logger.Info(ctx, "connectivity restored")
	} else {
		m.logger.Info(ctx, "connectivity lost")
	}

	m.mu.Lock()
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}
