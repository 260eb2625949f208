package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"satchel/internal/cache"
	"satchel/internal/connectivity"
	"satchel/internal/daemon"
	"satchel/internal/ipc"
	"satchel/internal/logging"
	"satchel/internal/offline"
	"satchel/internal/storage"
	"satchel/internal/syncer"
	"satchel/internal/syncqueue"
	"satchel/internal/testsupport"
)

type manualMonitor struct {
	*connectivity.Manual
}

func (manualMonitor) Start(context.Context) error { return nil }
func (manualMonitor) Stop()                       {}

type stubRemote struct {
	mu      sync.Mutex
	records map[string]storage.Record
}

func newStubRemote() *stubRemote {
	return &stubRemote{records: make(map[string]storage.Record)}
}

func (s *stubRemote) Name() string { return storage.ProviderRemote }

func (s *stubRemote) GetAll(_ context.Context, table string) ([]storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []storage.Record{}
	for _, rec := range s.records {
		if rec.Table == table {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *stubRemote) Get(_ context.Context, table, id string) (storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[table+"/"+id]
	if !ok {
		return storage.Record{}, storage.Wrap(storage.ErrNotFound, table, "get", "record "+id+" not found", nil)
	}
	return rec.Clone(), nil
}

func (s *stubRemote) Save(_ context.Context, rec storage.Record) (storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Table+"/"+rec.ID] = rec.Clone()
	return rec.Clone(), nil
}

func (s *stubRemote) Update(_ context.Context, table, id string, partial map[string]any) (storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[table+"/"+id]
	if !ok {
		return storage.Record{}, storage.Wrap(storage.ErrNotFound, table, "update", "record "+id+" not found", nil)
	}
	merged := rec.Merge(partial)
	s.records[table+"/"+id] = merged
	return merged.Clone(), nil
}

func (s *stubRemote) Delete(_ context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, table+"/"+id)
	return nil
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sync.AutoSyncInterval = 0
	cfg.Sync.ImportSettleMs = 10
	store := testsupport.MustOpenStore(t, cfg)
	queue := testsupport.MustOpenQueue(t, store)
	cacheStore, err := cache.NewStore(store.DB())
	if err != nil {
		t.Fatalf("cache.NewStore: %v", err)
	}
	logger := logging.NewNop()
	remote := newStubRemote()
	sm, err := syncer.NewManager(cfg, queue, store, remote, logger)
	if err != nil {
		t.Fatalf("syncer.NewManager: %v", err)
	}
	net := connectivity.NewManual(true)
	facade, err := offline.NewManager(cfg, store, remote, queue, sm, net, logger)
	if err != nil {
		t.Fatalf("offline.NewManager: %v", err)
	}
	d, err := daemon.New(cfg, store, queue, cacheStore, facade, sm, manualMonitor{net}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.LogDir, "satchel.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if !status.Online {
		t.Fatal("expected daemon to report online")
	}

	item, err := queue.Add(ctx, syncqueue.OpCreate, "players", map[string]any{
		"id":        "p1",
		"name":      "Ada",
		"updatedAt": storage.NowMillis(),
	})
	if err != nil {
		t.Fatalf("queue.Add: %v", err)
	}

	listResp, err := client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listResp.Items) != 1 || listResp.Items[0].ID != item.ID {
		t.Fatalf("unexpected queue listing: %#v", listResp.Items)
	}

	describeResp, err := client.QueueDescribe(item.ID)
	if err != nil {
		t.Fatalf("QueueDescribe failed: %v", err)
	}
	if !describeResp.Found || describeResp.Item.ID != item.ID {
		t.Fatalf("unexpected describe response: %#v", describeResp)
	}

	missingResp, err := client.QueueDescribe("absent")
	if err != nil {
		t.Fatalf("QueueDescribe missing failed: %v", err)
	}
	if missingResp.Found {
		t.Fatalf("expected missing id to report Found=false, got %#v", missingResp)
	}

	syncResp, err := client.Sync(false)
	if err != nil {
		t.Fatalf("Sync RPC failed: %v", err)
	}
	if !syncResp.Success || syncResp.Synced != 1 {
		t.Fatalf("unexpected sync response: %#v", syncResp)
	}
	if _, err := remote.Get(ctx, "players", "p1"); err != nil {
		t.Fatalf("expected drained record on remote: %v", err)
	}

	statsResp, err := client.QueueStats()
	if err != nil {
		t.Fatalf("QueueStats failed: %v", err)
	}
	if statsResp.Completed != 1 {
		t.Fatalf("expected one completed item, got %#v", statsResp)
	}

	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.LastSync == nil || status.LastSyncAt == "" {
		t.Fatalf("expected status to carry last sync info: %#v", status)
	}

	clearResp, err := client.QueueClearCompleted()
	if err != nil {
		t.Fatalf("QueueClearCompleted failed: %v", err)
	}
	if clearResp.Removed != 1 {
		t.Fatalf("expected 1 completed item removed, got %d", clearResp.Removed)
	}

	leftover, err := queue.Add(ctx, syncqueue.OpDelete, "players", map[string]any{"id": "p9"})
	if err != nil {
		t.Fatalf("queue.Add leftover: %v", err)
	}
	removeResp, err := client.QueueRemove([]string{leftover.ID})
	if err != nil {
		t.Fatalf("QueueRemove failed: %v", err)
	}
	if removeResp.Removed != 1 {
		t.Fatalf("expected 1 item removed, got %d", removeResp.Removed)
	}
	if _, err := client.QueueRemove(nil); err == nil {
		t.Fatal("expected QueueRemove to reject empty id list")
	}

	importResp, err := client.Import([]map[string]any{{"name": "grace hopper"}})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(importResp.Players) != 1 || importResp.Players[0].ID == "" {
		t.Fatalf("unexpected import response: %#v", importResp)
	}

	dbHealth, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth failed: %v", err)
	}
	if !strings.HasSuffix(dbHealth.DBPath, "satchel.db") {
		t.Fatalf("unexpected db path: %s", dbHealth.DBPath)
	}
	if !dbHealth.IntegrityCheck {
		t.Fatalf("expected integrity check to pass: %#v", dbHealth)
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp.Sent || notifyResp.Message == "" {
		t.Fatalf("expected unconfigured notification message, got %#v", notifyResp)
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected stop response to be true")
	}

	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}
