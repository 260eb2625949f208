package syncer_test

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"satchel/internal/config"
	"satchel/internal/localstore"
	"satchel/internal/logging"
	"satchel/internal/notifications"
	"satchel/internal/storage"
	"satchel/internal/syncer"
	"satchel/internal/syncqueue"
	"satchel/internal/testsupport"
)

// fakeRemote is an in-memory storage.Provider standing in for the remote API.
type fakeRemote struct {
	mu         sync.Mutex
	records    map[string]storage.Record
	failErr    error  // mutations fail with this while set
	failKey    string // restrict failures to one table/id when non-empty
	beforeSave func()
	saves      int
	updates    int
	deletes    int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]storage.Record)}
}

func key(table, id string) string { return table + "/" + id }

func (f *fakeRemote) Name() string { return storage.ProviderRemote }

func (f *fakeRemote) GetAll(_ context.Context, table string) ([]storage.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Record, 0)
	for _, rec := range f.records {
		if rec.Table == table {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (f *fakeRemote) Get(_ context.Context, table, id string) (storage.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key(table, id)]
	if !ok {
		return storage.Record{}, storage.Wrap(storage.ErrNotFound, table, "get", "record "+id+" not found", nil)
	}
	return rec.Clone(), nil
}

func (f *fakeRemote) Save(_ context.Context, rec storage.Record) (storage.Record, error) {
	if hook := f.saveHook(); hook != nil {
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if err := f.failureFor(key(rec.Table, rec.ID)); err != nil {
		return storage.Record{}, err
	}
	f.records[key(rec.Table, rec.ID)] = rec.Clone()
	return rec.Clone(), nil
}

func (f *fakeRemote) Update(_ context.Context, table, id string, partial map[string]any) (storage.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if err := f.failureFor(key(table, id)); err != nil {
		return storage.Record{}, err
	}
	rec, ok := f.records[key(table, id)]
	if !ok {
		return storage.Record{}, storage.Wrap(storage.ErrNotFound, table, "update", "record "+id+" not found", nil)
	}
	merged := rec.Merge(partial)
	f.records[key(table, id)] = merged
	return merged.Clone(), nil
}

func (f *fakeRemote) Delete(_ context.Context, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if err := f.failureFor(key(table, id)); err != nil {
		return err
	}
	// Missing rows count as already deleted, matching the HTTP client.
	delete(f.records, key(table, id))
	return nil
}

func (f *fakeRemote) failureFor(k string) error {
	if f.failErr == nil {
		return nil
	}
	if f.failKey != "" && f.failKey != k {
		return nil
	}
	return f.failErr
}

func (f *fakeRemote) saveHook() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beforeSave
}

func (f *fakeRemote) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

func (f *fakeRemote) seed(rec storage.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key(rec.Table, rec.ID)] = rec
}

func (f *fakeRemote) record(table, id string) (storage.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key(table, id)]
	return rec, ok
}

func (f *fakeRemote) counts() (saves, updates, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves, f.updates, f.deletes
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) seen() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...)
}

func newManager(t *testing.T, cfg *config.Config, remote *fakeRemote, notifier notifications.Service) (*syncer.Manager, *localstore.Store, *syncqueue.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	queue := testsupport.MustOpenQueue(t, store)
	mgr, err := syncer.NewManagerWithNotifier(cfg, queue, store, remote, notifier, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManagerWithNotifier: %v", err)
	}
	return mgr, store, queue
}

func mustAdd(t *testing.T, queue *syncqueue.Store, op syncqueue.Operation, table string, payload map[string]any) *syncqueue.Item {
	t.Helper()
	item, err := queue.Add(context.Background(), op, table, payload)
	if err != nil {
		t.Fatalf("Add(%s %s): %v", op, table, err)
	}
	return item
}

func networkErr(table, op string) error {
	return storage.Wrap(storage.ErrNetwork, table, op, "remote unreachable", nil)
}

func TestSyncPushesQueuedMutations(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()
	remote.seed(storage.Record{Table: "teams", ID: "t1", Fields: map[string]any{"name": "Old Name"}, UpdatedAt: 1000})
	remote.seed(storage.Record{Table: "drills", ID: "d1", Fields: map[string]any{"name": "Passing"}, UpdatedAt: 1000})

	mgr, _, queue := newManager(t, cfg, remote, nil)

	mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": "p1", "name": "Dana Scully"})
	mustAdd(t, queue, syncqueue.OpUpdate, "teams", map[string]any{"id": "t1", "name": "New Name", "updatedAt": storage.NowMillis()})
	mustAdd(t, queue, syncqueue.OpDelete, "drills", map[string]any{"id": "d1"})

	result, err := mgr.Sync(ctx, syncer.Options{Trigger: "manual"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !result.Success || result.SyncedItems != 3 || result.FailedItems != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}

	if rec, ok := remote.record("players", "p1"); !ok || rec.Fields["name"] != "Dana Scully" {
		t.Fatalf("create not pushed: %+v ok=%t", rec, ok)
	}
	if rec, ok := remote.record("teams", "t1"); !ok || rec.Fields["name"] != "New Name" {
		t.Fatalf("update not pushed: %+v ok=%t", rec, ok)
	}
	if _, ok := remote.record("drills", "d1"); ok {
		t.Fatal("delete not pushed")
	}

	stats, err := queue.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("expected drained queue, got %+v", stats)
	}
}

func TestSmallBatchesDrainWholeQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sync.BatchSize = 2
	remote := newFakeRemote()
	mgr, _, queue := newManager(t, cfg, remote, nil)

	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": id, "name": "Player " + id})
	}

	result, err := mgr.Sync(context.Background(), syncer.Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !result.Success || result.SyncedItems != 5 || result.FailedItems != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	saves, _, _ := remote.counts()
	if saves != 5 {
		t.Fatalf("expected 5 remote saves, got %d", saves)
	}

	stats, err := queue.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("expected drained queue, got %+v", stats)
	}
}

func TestSyncEmptyQueueIsSuccessful(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr, _, _ := newManager(t, cfg, newFakeRemote(), nil)

	result, err := mgr.Sync(context.Background(), syncer.Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !result.Success || result.SyncedItems != 0 || result.FailedItems != 0 {
		t.Fatalf("unexpected result for empty queue: %+v", result)
	}
}

func TestConcurrentSyncsShareOnePass(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()
	mgr, _, queue := newManager(t, cfg, remote, nil)

	mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": "p1", "name": "One"})
	mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": "p2", "name": "Two"})

	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	remote.beforeSave = func() {
		once.Do(func() { close(started) })
		<-release
	}

	type outcome struct {
		result syncer.Result
		err    error
	}
	outcomes := make(chan outcome, 2)
	run := func() {
		res, err := mgr.Sync(context.Background(), syncer.Options{Trigger: "manual"})
		outcomes <- outcome{res, err}
	}

	go run()
	<-started // first drain is mid-pass, holding the flight
	go run()
	time.Sleep(20 * time.Millisecond)
	close(release)

	first := <-outcomes
	second := <-outcomes
	if first.err != nil || second.err != nil {
		t.Fatalf("sync errors: %v / %v", first.err, second.err)
	}
	if !reflect.DeepEqual(first.result, second.result) {
		t.Fatalf("concurrent callers saw different results: %+v vs %+v", first.result, second.result)
	}
	if first.result.SyncedItems != 2 {
		t.Fatalf("expected 2 synced items, got %+v", first.result)
	}
	if saves, _, _ := remote.counts(); saves != 2 {
		t.Fatalf("expected one pass over the queue (2 saves), got %d", saves)
	}
}

func TestRetryCeilingMarksItemsFailed(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()
	remote.setFail(networkErr("players", "save"))

	mgr, _, queue := newManager(t, cfg, remote, nil)
	item := mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": "p1", "name": "Dana"})

	// cfg.Sync.MaxRetries is 3: two drains leave the item pending with a
	// climbing retry count, the third demotes it to failed.
	for attempt := 1; attempt <= 3; attempt++ {
		result, err := mgr.Sync(ctx, syncer.Options{})
		if err != nil {
			t.Fatalf("Sync attempt %d: %v", attempt, err)
		}
		if result.Success || result.FailedItems != 1 {
			t.Fatalf("attempt %d: unexpected result %+v", attempt, result)
		}

		got, err := queue.GetByID(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.RetryCount != attempt {
			t.Fatalf("attempt %d: retry count %d", attempt, got.RetryCount)
		}
		wantStatus := syncqueue.StatusPending
		if attempt >= cfg.Sync.MaxRetries {
			wantStatus = syncqueue.StatusFailed
		}
		if got.Status != wantStatus {
			t.Fatalf("attempt %d: status %s, want %s", attempt, got.Status, wantStatus)
		}
		if got.LastError == "" {
			t.Fatalf("attempt %d: last error not recorded", attempt)
		}
	}
}

func TestFailedItemsHealOnLaterDrains(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()
	remote.setFail(networkErr("players", "save"))

	mgr, _, queue := newManager(t, cfg, remote, nil)
	mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": "p1", "name": "Dana"})

	for i := 0; i < cfg.Sync.MaxRetries; i++ {
		if _, err := mgr.Sync(ctx, syncer.Options{}); err != nil {
			t.Fatalf("Sync: %v", err)
		}
	}

	// Failed rows stay in the pending+failed fetch, so a recovered remote
	// settles them on the next pass without a manual reset.
	remote.setFail(nil)
	result, err := mgr.Sync(ctx, syncer.Options{})
	if err != nil {
		t.Fatalf("Sync after recovery: %v", err)
	}
	if !result.Success || result.SyncedItems != 1 {
		t.Fatalf("unexpected recovery result: %+v", result)
	}
	if _, ok := remote.record("players", "p1"); !ok {
		t.Fatal("record not pushed after recovery")
	}
}

func TestValidationFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()
	remote.setFail(storage.Wrap(storage.ErrValidation, "players", "save", "name is required", nil))

	mgr, _, queue := newManager(t, cfg, remote, nil)
	item := mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": "p1", "name": "Dana"})

	result, err := mgr.Sync(ctx, syncer.Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.FailedItems != 1 || result.Success {
		t.Fatalf("unexpected result: %+v", result)
	}

	got, err := queue.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != syncqueue.StatusFailed {
		t.Fatalf("validation failure should skip the retry cycle, status %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("retry count %d", got.RetryCount)
	}
	if !strings.Contains(got.LastError, "name is required") {
		t.Fatalf("last error %q", got.LastError)
	}
}

func TestMalformedQueueRowsFailWithoutRetry(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()

	mgr, store, queue := newManager(t, cfg, remote, nil)

	// Rows written by an older or foreign client can slip past Add's
	// validation, so push them straight into the table.
	now := time.Now().UnixMilli()
	for _, row := range []struct {
		id, op, payload string
	}{
		{"q-no-id", "update", `{"name":"Dana"}`},
		{"q-bad-op", "upsert", `{"id":"p1","name":"Dana"}`},
	} {
		_, err := store.DB().ExecContext(ctx,
			`INSERT INTO sync_queue (id, operation, table_name, payload, enqueued_at_ms, updated_at_ms) VALUES (?, ?, 'players', ?, ?, ?)`,
			row.id, row.op, row.payload, now, now)
		if err != nil {
			t.Fatalf("seed row %s: %v", row.id, err)
		}
	}

	result, err := mgr.Sync(ctx, syncer.Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Success || result.FailedItems != 2 || result.SyncedItems != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	noID, err := queue.GetByID(ctx, "q-no-id")
	if err != nil {
		t.Fatalf("GetByID q-no-id: %v", err)
	}
	if noID.Status != syncqueue.StatusFailed {
		t.Fatalf("id-less row should land terminal, status %s", noID.Status)
	}
	if !strings.Contains(noID.LastError, "requires data with id field") {
		t.Fatalf("last error %q", noID.LastError)
	}

	badOp, err := queue.GetByID(ctx, "q-bad-op")
	if err != nil {
		t.Fatalf("GetByID q-bad-op: %v", err)
	}
	if badOp.Status != syncqueue.StatusFailed {
		t.Fatalf("unknown-operation row should land terminal, status %s", badOp.Status)
	}
	if !strings.Contains(badOp.LastError, "unknown operation") {
		t.Fatalf("last error %q", badOp.LastError)
	}

	saves, updates, deletes := remote.counts()
	if saves != 0 || updates != 0 || deletes != 0 {
		t.Fatalf("malformed rows must never reach the remote: %d/%d/%d", saves, updates, deletes)
	}
}

func TestUpdateRecreatesMissingRemoteRecord(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()

	mgr, _, queue := newManager(t, cfg, remote, nil)
	mustAdd(t, queue, syncqueue.OpUpdate, "players", map[string]any{
		"id": "p1", "name": "Dana", "updatedAt": storage.NowMillis(),
	})

	result, err := mgr.Sync(ctx, syncer.Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !result.Success || result.SyncedItems != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	rec, ok := remote.record("players", "p1")
	if !ok || rec.Fields["name"] != "Dana" {
		t.Fatalf("record not recreated: %+v ok=%t", rec, ok)
	}
	if saves, updates, _ := remote.counts(); saves != 1 || updates != 0 {
		t.Fatalf("expected recreate via save, got saves=%d updates=%d", saves, updates)
	}
}

func TestLastWriteWinsKeepsNewerRemote(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()
	remoteCopy := storage.Record{
		Table:     "players",
		ID:        "p1",
		Fields:    map[string]any{"name": "Remote Edit"},
		UpdatedAt: storage.NowMillis(),
	}
	remote.seed(remoteCopy)

	mgr, store, queue := newManager(t, cfg, remote, nil)
	testsupport.SeedRecord(t, store, "players", "p1", map[string]any{"name": "Stale Local"})

	mustAdd(t, queue, syncqueue.OpUpdate, "players", map[string]any{
		"id": "p1", "name": "Stale Local", "updatedAt": 1000,
	})

	result, err := mgr.Sync(ctx, syncer.Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !result.Success || result.SyncedItems != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("expected one conflict, got %+v", result.Conflicts)
	}
	if c := result.Conflicts[0]; c.Outcome != "remote" || c.Table != "players" || c.RecordID != "p1" {
		t.Fatalf("unexpected conflict record: %+v", c)
	}

	// The losing write never reaches the remote.
	if rec, _ := remote.record("players", "p1"); rec.Fields["name"] != "Remote Edit" {
		t.Fatalf("remote was overwritten: %+v", rec)
	}
	if saves, updates, _ := remote.counts(); saves != 0 || updates != 0 {
		t.Fatalf("expected no remote mutations, got saves=%d updates=%d", saves, updates)
	}

	// The local store converges toward the winning remote copy.
	local, err := store.Get(ctx, "players", "p1")
	if err != nil {
		t.Fatalf("local Get: %v", err)
	}
	if local.Fields["name"] != "Remote Edit" {
		t.Fatalf("local store did not converge: %+v", local.Fields)
	}
}

func TestStaleRemoteLosesToQueuedUpdate(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()
	remote.seed(storage.Record{
		Table:     "players",
		ID:        "p1",
		Fields:    map[string]any{"name": "Old"},
		UpdatedAt: 1000,
	})

	mgr, _, queue := newManager(t, cfg, remote, nil)
	mustAdd(t, queue, syncqueue.OpUpdate, "players", map[string]any{
		"id": "p1", "name": "Fresh", "updatedAt": storage.NowMillis(),
	})

	result, err := mgr.Sync(ctx, syncer.Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !result.Success || len(result.Conflicts) != 0 {
		t.Fatalf("clean apply should not flag conflicts: %+v", result)
	}
	if rec, _ := remote.record("players", "p1"); rec.Fields["name"] != "Fresh" {
		t.Fatalf("queued update not applied: %+v", rec)
	}
}

func TestUserChoiceParksConflictForManualResolution(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t, testsupport.WithConflictStrategy("user-choice"))
	remote := newFakeRemote()
	remote.seed(storage.Record{
		Table:     "players",
		ID:        "p1",
		Fields:    map[string]any{"name": "Remote Edit"},
		UpdatedAt: storage.NowMillis(),
	})

	mgr, _, queue := newManager(t, cfg, remote, nil)
	item := mustAdd(t, queue, syncqueue.OpUpdate, "players", map[string]any{
		"id": "p1", "name": "Local Edit", "updatedAt": 1000,
	})

	result, err := mgr.Sync(ctx, syncer.Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Success || result.FailedItems != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].Outcome != "manual" {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}

	got, err := queue.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != syncqueue.StatusFailed {
		t.Fatalf("parked conflict should be failed, got %s", got.Status)
	}
	if got.LastError != "conflict requires manual resolution" {
		t.Fatalf("last error %q", got.LastError)
	}
	if rec, _ := remote.record("players", "p1"); rec.Fields["name"] != "Remote Edit" {
		t.Fatalf("remote mutated while parked: %+v", rec)
	}
}

func TestRetryFailedRestoresBudgetAndDrains(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()
	remote.setFail(networkErr("players", "save"))

	mgr, _, queue := newManager(t, cfg, remote, nil)
	item := mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": "p1", "name": "Dana"})

	for i := 0; i < cfg.Sync.MaxRetries; i++ {
		if _, err := mgr.Sync(ctx, syncer.Options{}); err != nil {
			t.Fatalf("Sync: %v", err)
		}
	}
	got, err := queue.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != syncqueue.StatusFailed {
		t.Fatalf("expected failed item before retry, got %s", got.Status)
	}

	remote.setFail(nil)
	result, err := mgr.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if !result.Success || result.SyncedItems != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	stats, err := mgr.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("expected empty queue after retry, got %+v", stats)
	}
}

func TestPartialFailureDoesNotAbortDrain(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()
	remote.failErr = networkErr("players", "save")
	remote.failKey = "players/p2"

	mgr, _, queue := newManager(t, cfg, remote, nil)
	mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": "p1", "name": "One"})
	mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": "p2", "name": "Two"})
	mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": "p3", "name": "Three"})

	result, err := mgr.Sync(ctx, syncer.Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !result.Success || result.SyncedItems != 2 || result.FailedItems != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "p2") {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if _, ok := remote.record("players", "p1"); !ok {
		t.Fatal("p1 missing after drain")
	}
	if _, ok := remote.record("players", "p3"); !ok {
		t.Fatal("p3 missing after drain")
	}
}

func TestDrainPublishesLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	remote := newFakeRemote()
	notifier := &recordingNotifier{}

	mgr, _, queue := newManager(t, cfg, remote, notifier)
	mustAdd(t, queue, syncqueue.OpCreate, "players", map[string]any{"id": "p1", "name": "Dana"})

	if _, err := mgr.Sync(ctx, syncer.Options{Trigger: "manual"}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	events := notifier.seen()
	if len(events) != 2 || events[0] != notifications.EventSyncStarted || events[1] != notifications.EventSyncCompleted {
		t.Fatalf("unexpected event sequence: %v", events)
	}
}
