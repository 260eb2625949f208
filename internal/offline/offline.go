package offline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"satchel/internal/config"
	"satchel/internal/connectivity"
	"satchel/internal/debounce"
	"satchel/internal/logging"
	"satchel/internal/records"
	"satchel/internal/storage"
	"satchel/internal/syncer"
	"satchel/internal/syncqueue"
)

// LocalStore is the durable half of the façade: uniform record CRUD plus the
// local-only timer-state capability.
type LocalStore interface {
	storage.Provider
	storage.TimerStateStore
}

// Manager is the offline-first storage façade. Reads serve the local store
// only. Writes land in the local store first, then reach the remote store when
// the device is online; an offline state or a failed push queues the mutation
// instead, and the caller never sees the difference. Same-record update bursts
// coalesce through the debouncer into a single write.
type Manager struct {
	cfg      *config.Config
	local    LocalStore
	remote   storage.Provider
	queue    *syncqueue.Store
	syncer   *syncer.Manager
	observer connectivity.Observer
	updates  *debounce.Debouncer[storage.Record]
	logger   *slog.Logger

	unsubscribe func()

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewManager wires the façade and subscribes it to connectivity transitions.
// The queue store must be the same instance the sync manager drains; two
// queues over the same database would race each other's rows.
func NewManager(cfg *config.Config, local LocalStore, remote storage.Provider, queue *syncqueue.Store, sm *syncer.Manager, observer connectivity.Observer, logger *slog.Logger) (*Manager, error) {
	if cfg == nil || local == nil || remote == nil || queue == nil || sm == nil || observer == nil {
		return nil, errors.New("offline manager requires config, stores, queue, sync manager, and connectivity observer")
	}

	m := &Manager{
		cfg:      cfg,
		local:    local,
		remote:   remote,
		queue:    queue,
		syncer:   sm,
		observer: observer,
		updates: debounce.New[storage.Record](debounce.Config{
			Window:   time.Duration(cfg.Debounce.WindowMs) * time.Millisecond,
			MaxWait:  time.Duration(cfg.Debounce.MaxWaitMs) * time.Millisecond,
			MaxBatch: cfg.Debounce.MaxBatch,
		}),
		logger: logging.NewComponentLogger(logger, "offline"),
		done:   make(chan struct{}),
	}
	m.unsubscribe = observer.Subscribe(m.handleConnectivity)
	return m, nil
}

// GetAll lists a table from the local store. Reads never touch the network.
func (m *Manager) GetAll(ctx context.Context, table string) ([]storage.Record, error) {
	return m.local.GetAll(ctx, table)
}

// Get fetches one record from the local store.
func (m *Manager) Get(ctx context.Context, table, id string) (storage.Record, error) {
	return m.local.Get(ctx, table, id)
}

// Save upserts a record: local first for durability, then the remote store or
// the queue. A record without an id is assigned one here, before the first
// push, so replays upsert the same remote row instead of creating twins.
func (m *Manager) Save(ctx context.Context, rec storage.Record) (storage.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := records.Validate(rec.Table, "create", rec.Payload()); err != nil {
		return storage.Record{}, err
	}

	saved, err := m.local.Save(ctx, rec)
	if err != nil {
		return storage.Record{}, err
	}
	m.settleRemote(ctx, syncqueue.OpCreate, saved.Table, saved.Payload(), func(ctx context.Context) error {
		_, err := m.remote.Save(ctx, saved)
		return err
	})
	return saved, nil
}

// Update applies a partial mutation. Calls against the same record inside the
// debounce window fold into one merged write; every caller in the burst blocks
// until the group settles and receives the same post-merge record.
func (m *Manager) Update(ctx context.Context, table, id string, partial map[string]any) (storage.Record, error) {
	return m.update(ctx, table, id, partial, debounce.Options{})
}

func (m *Manager) update(ctx context.Context, table, id string, partial map[string]any, opts debounce.Options) (storage.Record, error) {
	probe := records.DeepMerge(partial, map[string]any{"id": id})
	if err := records.Validate(table, "update", probe); err != nil {
		return storage.Record{}, err
	}

	key := table + "/" + id
	return m.updates.Do(ctx, key, partial, func(ctx context.Context, merged map[string]any) (storage.Record, error) {
		updated, err := m.local.Update(ctx, table, id, merged)
		if err != nil {
			return storage.Record{}, err
		}
		// The queued payload carries the merged partial plus the post-merge
		// timestamp, which is what conflict resolution compares remotely.
		payload := records.DeepMerge(merged, map[string]any{"id": id, "updatedAt": updated.UpdatedAt})
		m.settleRemote(ctx, syncqueue.OpUpdate, table, payload, func(ctx context.Context) error {
			_, err := m.remote.Update(ctx, table, id, payload)
			return err
		})
		return updated, nil
	}, opts)
}

// Delete removes a record locally and settles the removal remotely. Deleting
// an absent record reports not found.
func (m *Manager) Delete(ctx context.Context, table, id string) error {
	payload := map[string]any{"id": id}
	if err := records.Validate(table, "delete", payload); err != nil {
		return err
	}
	if err := m.local.Delete(ctx, table, id); err != nil {
		return err
	}
	m.settleRemote(ctx, syncqueue.OpDelete, table, payload, func(ctx context.Context) error {
		return m.remote.Delete(ctx, table, id)
	})
	return nil
}

// SaveTimerState persists ephemeral session-timer state. Timer rows are
// local-only and never enter the queue or the remote store.
func (m *Manager) SaveTimerState(ctx context.Context, id string, state map[string]any) error {
	return m.local.SaveTimerState(ctx, id, state)
}

// TimerState loads ephemeral session-timer state.
func (m *Manager) TimerState(ctx context.Context, id string) (map[string]any, error) {
	return m.local.TimerState(ctx, id)
}

// DeleteTimerState discards ephemeral session-timer state.
func (m *Manager) DeleteTimerState(ctx context.Context, id string) error {
	return m.local.DeleteTimerState(ctx, id)
}

// ImportPlayers bulk-loads player payloads: names are normalized, missing ids
// assigned, every row written locally and queued regardless of connectivity,
// then one background drain pushes the whole batch after a short settle delay.
// On a mid-batch failure the rows already staged stay staged, and the partial
// result reports them.
func (m *Manager) ImportPlayers(ctx context.Context, payloads []map[string]any) ([]storage.Record, error) {
	imported := make([]storage.Record, 0, len(payloads))
	for _, payload := range payloads {
		payload = records.DeepMerge(payload, nil)
		if name, ok := payload["name"].(string); ok {
			payload["name"] = records.NormalizeDisplayName(name)
		}
		if _, ok := storage.PayloadID(payload); !ok {
			payload["id"] = uuid.NewString()
		}
		if err := records.Validate(records.TablePlayers, "create", payload); err != nil {
			return imported, err
		}
		rec, err := storage.FromPayload(records.TablePlayers, payload)
		if err != nil {
			return imported, err
		}
		saved, err := m.local.Save(ctx, rec)
		if err != nil {
			return imported, err
		}
		m.enqueue(ctx, syncqueue.OpCreate, records.TablePlayers, saved.Payload(), "import")
		imported = append(imported, saved)
	}

	if len(imported) > 0 {
		m.logger.Info("player import staged",
			logging.Int("players", len(imported)),
			logging.Bool("online", m.observer.Online()))
		m.spawnDrain("import", time.Duration(m.cfg.Sync.ImportSettleMs)*time.Millisecond)
	}
	return imported, nil
}

// ForceSync runs a queue drain now and returns its result.
func (m *Manager) ForceSync(ctx context.Context) (syncer.Result, error) {
	return m.syncer.Sync(ctx, syncer.Options{Trigger: "manual"})
}

// Flush settles any coalescing update bursts immediately.
func (m *Manager) Flush() {
	m.updates.Flush()
}

// Close detaches from connectivity transitions, settles pending debounced
// writes, and waits for background drains to finish. Safe to call twice.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.updates.Flush()
	m.wg.Wait()
}

// settleRemote pushes a locally committed mutation to the remote store, or
// queues it when the device is offline or the push fails. The local write is
// already durable, so nothing here surfaces to the caller: the queue is the
// recovery path.
func (m *Manager) settleRemote(ctx context.Context, op syncqueue.Operation, table string, payload map[string]any, push func(context.Context) error) {
	if !m.observer.Online() {
		m.enqueue(ctx, op, table, payload, "offline")
		return
	}
	err := push(ctx)
	if err == nil {
		return
	}
	logging.WithContext(ctx, m.logger).Warn("remote write failed, queuing mutation",
		logging.String(logging.FieldOperation, string(op)),
		logging.String(logging.FieldTable, table),
		logging.Error(err))
	m.enqueue(ctx, op, table, payload, "remote failure")
}

func (m *Manager) enqueue(ctx context.Context, op syncqueue.Operation, table string, payload map[string]any, reason string) {
	item, err := m.queue.Add(ctx, op, table, payload)
	if err != nil {
		// The caller's copy is durable locally but will not reach the remote
		// store until some later write for the same record succeeds.
		logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "failed to queue mutation, stores may diverge", "queue_write_failed",
			logging.String(logging.FieldOperation, string(op)),
			logging.String(logging.FieldTable, table),
			logging.String(logging.FieldErrorHint, "check the client database, then re-save the record"),
			logging.Error(err))
		return
	}
	logging.WithContext(ctx, m.logger).Debug("mutation queued for sync",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldOperation, string(op)),
		logging.String(logging.FieldTable, table),
		logging.String("reason", reason))
}

// handleConnectivity reacts to pushed transitions. Coming online starts a
// drain for whatever queued while disconnected; going offline needs no action
// because write paths consult the observer on every call.
func (m *Manager) handleConnectivity(online bool) {
	if !online {
		return
	}
	m.spawnDrain("online", 0)
}

// spawnDrain runs a queue drain on a background goroutine, optionally after a
// delay. Close aborts delayed drains still waiting and blocks until running
// ones return.
func (m *Manager) spawnDrain(trigger string, delay time.Duration) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-m.done:
				return
			case <-timer.C:
			}
		}
		if !m.observer.Online() {
			// Draining against an unreachable remote would only burn each
			// item's retry budget. The online transition restarts the drain.
			m.logger.Debug("skipping background drain while offline",
				logging.String(logging.FieldTrigger, trigger))
			return
		}
		if _, err := m.syncer.Sync(context.Background(), syncer.Options{Trigger: trigger}); err != nil {
			m.logger.Warn("background drain failed",
				logging.String(logging.FieldTrigger, trigger),
				logging.Error(err))
		}
	}()
}
