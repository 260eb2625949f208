package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"satchel/internal/cache"
	"satchel/internal/config"
	"satchel/internal/connectivity"
	"satchel/internal/localstore"
	"satchel/internal/logging"
	"satchel/internal/notifications"
	"satchel/internal/offline"
	"satchel/internal/storage"
	"satchel/internal/syncer"
	"satchel/internal/syncqueue"
)

// cachePruneInterval bounds how long expired cache rows linger between reads.
const cachePruneInterval = 15 * time.Minute

// Monitor watches remote reachability for the daemon lifetime.
type Monitor interface {
	connectivity.Observer
	Start(ctx context.Context) error
	Stop()
}

// Daemon coordinates background sync services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *localstore.Store
	queue    *syncqueue.Store
	cache    *cache.Store
	facade   *offline.Manager
	syncer   *syncer.Manager
	monitor  Monitor
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu         sync.Mutex
	lastSync   *syncer.Result
	lastSyncAt int64
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool
	Online      bool
	PID         int
	DBPath      string
	LockPath    string
	Queue       syncqueue.Stats
	TableCounts map[string]int
	LastSyncAt  int64
	LastSync    *syncer.Result

	// OldestPendingAt is the enqueue time of the oldest drainable item in
	// unix milliseconds, or 0 when the queue is empty.
	OldestPendingAt int64
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *localstore.Store, queue *syncqueue.Store, cacheStore *cache.Store, facade *offline.Manager, sm *syncer.Manager, monitor Monitor, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || queue == nil || cacheStore == nil || facade == nil || sm == nil || monitor == nil {
		return nil, errors.New("daemon requires config, stores, offline facade, sync manager, and connectivity monitor")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		queue:    queue,
		cache:    cacheStore,
		facade:   facade,
		syncer:   sm,
		monitor:  monitor,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the connectivity monitor and
// background tickers.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another satchel daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.monitor.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start connectivity monitor: %w", err)
	}

	d.startAutoSync(d.ctx)
	d.startCachePrune(d.ctx)

	d.running.Store(true)
	d.logger.Info("satchel daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.monitor.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("satchel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.facade != nil {
		d.facade.Close()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// startAutoSync drains the queue on a fixed cadence while the device is
// online. Offline ticks are skipped so retry budgets are not burned on
// mutations that cannot reach the remote.
func (d *Daemon) startAutoSync(ctx context.Context) {
	interval := time.Duration(d.cfg.Sync.AutoSyncInterval) * time.Second
	if interval <= 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !d.monitor.Online() {
					continue
				}
				result, err := d.syncer.Sync(ctx, syncer.Options{Trigger: "interval"})
				if err != nil {
					d.logger.Warn("scheduled sync failed",
						logging.Error(err),
						logging.String(logging.FieldEventType, "auto_sync_failed"))
					continue
				}
				d.recordSync(result)
			}
		}
	}()
}

// startCachePrune evicts expired response cache rows in the background.
func (d *Daemon) startCachePrune(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(cachePruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pruned, err := d.cache.PruneExpired(ctx)
				if err != nil {
					d.logger.Warn("cache prune failed", logging.Error(err))
					continue
				}
				if pruned > 0 {
					d.logger.Debug("cache pruned", logging.Int64("removed_count", pruned))
				}
			}
		}
	}()
}

func (d *Daemon) recordSync(result syncer.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSync = &result
	d.lastSyncAt = storage.NowMillis()
}

// Sync settles buffered updates and drains the queue now. When retryFailed
// is set, failed items are reset to pending before the drain.
func (d *Daemon) Sync(ctx context.Context, retryFailed bool) (syncer.Result, error) {
	if d.facade == nil || d.syncer == nil {
		return syncer.Result{}, errors.New("sync manager unavailable")
	}
	d.facade.Flush()
	var (
		result syncer.Result
		err    error
	)
	if retryFailed {
		result, err = d.syncer.RetryFailed(ctx)
	} else {
		result, err = d.facade.ForceSync(ctx)
	}
	if err != nil {
		return result, err
	}
	d.recordSync(result)
	return result, nil
}

// ListQueue returns queue items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []syncqueue.Status) ([]*syncqueue.Item, error) {
	if d.queue == nil {
		return nil, errors.New("sync queue unavailable")
	}
	return d.queue.List(ctx, statuses...)
}

// QueueStats returns aggregate queue counts.
func (d *Daemon) QueueStats(ctx context.Context) (syncqueue.Stats, error) {
	if d.queue == nil {
		return syncqueue.Stats{}, errors.New("sync queue unavailable")
	}
	return d.queue.Stats(ctx)
}

// ClearCompleted removes completed queue items.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.queue == nil {
		return 0, errors.New("sync queue unavailable")
	}
	return d.queue.ClearCompleted(ctx)
}

// RemoveQueueItems deletes specific queue items by id. It stops at the first
// failure and reports how many removals landed before it.
func (d *Daemon) RemoveQueueItems(ctx context.Context, ids []string) (int64, error) {
	if d.queue == nil {
		return 0, errors.New("sync queue unavailable")
	}
	var removed int64
	for _, id := range ids {
		if err := d.queue.Remove(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// DescribeQueueItem fetches a single queue item. A missing id returns nil
// without error.
func (d *Daemon) DescribeQueueItem(ctx context.Context, id string) (*syncqueue.Item, error) {
	if d.queue == nil {
		return nil, errors.New("sync queue unavailable")
	}
	return d.queue.GetByID(ctx, id)
}

// ImportPlayers stages a roster import through the offline facade.
func (d *Daemon) ImportPlayers(ctx context.Context, payloads []map[string]any) ([]storage.Record, error) {
	if d.facade == nil {
		return nil, errors.New("offline facade unavailable")
	}
	return d.facade.ImportPlayers(ctx, payloads)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (localstore.DatabaseHealth, error) {
	if d.store == nil {
		return localstore.DatabaseHealth{}, errors.New("local store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification publishes a test event using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:  d.running.Load(),
		Online:   d.monitor.Online(),
		PID:      os.Getpid(),
		DBPath:   d.cfg.DatabasePath(),
		LockPath: d.lockPath,
	}
	if d.queue != nil {
		if stats, err := d.queue.Stats(ctx); err == nil {
			st.Queue = stats
		}
		if oldest, err := d.queue.OldestPending(ctx); err == nil && oldest != nil {
			st.OldestPendingAt = oldest.EnqueuedAt
		}
	}
	if d.store != nil {
		if counts, err := d.store.TableCounts(ctx); err == nil {
			st.TableCounts = counts
		}
	}
	d.mu.Lock()
	st.LastSyncAt = d.lastSyncAt
	if d.lastSync != nil {
		result := *d.lastSync
		st.LastSync = &result
	}
	d.mu.Unlock()
	return st
}
