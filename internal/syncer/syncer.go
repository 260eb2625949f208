package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"satchel/internal/config"
	"satchel/internal/conflict"
	"satchel/internal/logging"
	"satchel/internal/notifications"
	"satchel/internal/storage"
	"satchel/internal/syncqueue"
)

// Manager drains the durable sync queue against the remote store. At most one
// drain runs at a time: concurrent callers join the in-flight pass and observe
// its result instead of starting a second one.
type Manager struct {
	cfg      *config.Config
	queue    *syncqueue.Store
	local    storage.Provider
	remote   storage.Provider
	resolver *conflict.Resolver
	notifier notifications.Service
	logger   *slog.Logger

	mu       sync.Mutex
	inflight *flight
}

// flight is the shared outcome of one drain pass. Joiners block on done and
// read the same result the initiating caller gets.
type flight struct {
	done   chan struct{}
	result Result
	err    error
}

// Options tune a single drain.
type Options struct {
	// Trigger labels what started the drain ("manual", "online", "interval",
	// "import", "retry") for structured logs and notifications.
	Trigger string
}

// Result reports one queue drain.
type Result struct {
	Success     bool
	SyncedItems int
	FailedItems int
	Conflicts   []conflict.Record
	Errors      []string
}

// NewManager wires a sync manager using the notifier derived from cfg.
func NewManager(cfg *config.Config, queue *syncqueue.Store, local, remote storage.Provider, logger *slog.Logger) (*Manager, error) {
	return NewManagerWithNotifier(cfg, queue, local, remote, notifications.NewService(cfg), logger)
}

// NewManagerWithNotifier wires a sync manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, queue *syncqueue.Store, local, remote storage.Provider, notifier notifications.Service, logger *slog.Logger) (*Manager, error) {
	if queue == nil {
		return nil, errors.New("syncer: queue store is required")
	}
	if local == nil || remote == nil {
		return nil, errors.New("syncer: local and remote providers are required")
	}
	strategy, err := conflict.ParseStrategy(cfg.Conflict.Strategy)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		queue:    queue,
		local:    local,
		remote:   remote,
		resolver: conflict.New(strategy),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "syncer"),
	}, nil
}

// Sync drains every pending and failed queue item against the remote store.
// If a drain is already in flight the caller blocks on that pass and receives
// its result, so concurrent triggers never run parallel drains.
func (m *Manager) Sync(ctx context.Context, opts Options) (Result, error) {
	m.mu.Lock()
	if fl := m.inflight; fl != nil {
		m.mu.Unlock()
		select {
		case <-fl.done:
			return fl.result, fl.err
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	fl := &flight{done: make(chan struct{})}
	m.inflight = fl
	m.mu.Unlock()

	result, err := m.drain(ctx, opts)

	m.mu.Lock()
	m.inflight = nil
	m.mu.Unlock()
	fl.result = result
	fl.err = err
	close(fl.done)
	return result, err
}

// RetryFailed resets every failed item to pending with a fresh retry budget,
// then runs a normal drain.
func (m *Manager) RetryFailed(ctx context.Context) (Result, error) {
	reset, err := m.queue.ResetFailed(ctx)
	if err != nil {
		return Result{}, err
	}
	if reset > 0 {
		m.logger.Info("reset failed queue items", logging.Int64("reset", reset))
	}
	return m.Sync(ctx, Options{Trigger: "retry"})
}

// Stats reports queue counters without side effects.
func (m *Manager) Stats(ctx context.Context) (syncqueue.Stats, error) {
	return m.queue.Stats(ctx)
}
