package main

import (
	"context"
	"testing"

	"satchel/internal/storage"
	"satchel/internal/syncqueue"
	"satchel/internal/testsupport"
)

func TestSyncPushesQueuedItemThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.queue.Add(ctx, syncqueue.OpCreate, "players", map[string]any{
		"id":        "p1",
		"name":      "Ada",
		"updatedAt": storage.NowMillis(),
	}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	out, _, err := runCLI(t, []string{"sync"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	requireContains(t, out, "Sync completed: 1 item(s) pushed")

	if _, err := env.remote.Get(ctx, "players", "p1"); err != nil {
		t.Fatalf("expected synced record on remote: %v", err)
	}
}

func TestSyncRetryFailedFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	item, err := env.queue.Add(ctx, syncqueue.OpCreate, "players", map[string]any{
		"id":        "p2",
		"name":      "Grace",
		"updatedAt": storage.NowMillis(),
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := env.queue.MarkFailed(ctx, item.ID, "remote rejected"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	out, _, err := runCLI(t, []string{"sync", "--retry-failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sync --retry-failed: %v", err)
	}
	requireContains(t, out, "Sync completed: 1 item(s) pushed")

	if _, err := env.remote.Get(ctx, "players", "p2"); err != nil {
		t.Fatalf("expected retried record on remote: %v", err)
	}
}

func TestSyncReportsResolvedConflict(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.remote.Save(ctx, storage.Record{
		Table:     "players",
		ID:        "p1",
		Fields:    map[string]any{"name": "Remote Edit"},
		UpdatedAt: storage.NowMillis(),
	}); err != nil {
		t.Fatalf("seed remote: %v", err)
	}
	testsupport.SeedRecord(t, env.store, "players", "p1", map[string]any{"name": "Stale Local"})

	if _, err := env.queue.Add(ctx, syncqueue.OpUpdate, "players", map[string]any{
		"id": "p1", "name": "Stale Local", "updatedAt": 1000,
	}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	out, _, err := runCLI(t, []string{"sync"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	requireContains(t, out, "Sync completed: 1 item(s) pushed")
	requireContains(t, out, "Conflict on players/p1 resolved via last-write-wins (remote)")
}

func TestSyncFallsBackToDirectDrain(t *testing.T) {
	env := setupCLITestEnv(t)

	// Empty queue keeps the direct drain off the network entirely.
	out, _, err := runCLI(t, []string{"sync"}, missingSocket(t), env.configPath)
	if err != nil {
		t.Fatalf("sync fallback: %v", err)
	}
	requireContains(t, out, "Sync completed: 0 item(s) pushed")
}
