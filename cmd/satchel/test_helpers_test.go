package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"satchel/internal/cache"
	"satchel/internal/config"
	"satchel/internal/connectivity"
	"satchel/internal/daemon"
	"satchel/internal/ipc"
	"satchel/internal/localstore"
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

type cliTestEnv struct {
	cfg        *config.Config
	store      *localstore.Store
	queue      *syncqueue.Store
	remote     *stubRemote
	net        *connectivity.Manual
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Sync.AutoSyncInterval = 0
	cfg.Sync.ImportSettleMs = 10

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

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

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		queue:      queue,
		remote:     remote,
		net:        net,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

// startDaemon transitions the embedded daemon to running for tests that need
// a live status.
func (env *cliTestEnv) startDaemon(t *testing.T) {
	t.Helper()
	if err := env.daemon.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(env.daemon.Stop)
}

// missingSocket returns a socket path that nothing listens on, forcing
// commands into their direct-store fallback.
func missingSocket(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "absent.sock")
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[remote]
base_url = %q
api_key = %q

[sync]
auto_sync_interval = 0
import_settle_ms = 10
`,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Remote.BaseURL,
		cfg.Remote.APIKey,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
