package cache_test

import (
	"context"
	"testing"
	"time"

	"satchel/internal/cache"
	"satchel/internal/testsupport"
)

func newCache(t *testing.T) *cache.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	entries, err := cache.NewStore(store.DB())
	if err != nil {
		t.Fatalf("cache.NewStore: %v", err)
	}
	return entries
}

func TestSetAndGetRoundTrip(t *testing.T) {
	entries := newCache(t)
	ctx := context.Background()

	value := map[string]any{"players": []any{"p1", "p2"}}
	if err := entries.Set(ctx, "players:getAll", value, time.Minute, "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var decoded map[string]any
	hit, err := entries.GetJSON(ctx, "players:getAll", "v1", &decoded)
	if err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	players, ok := decoded["players"].([]any)
	if !ok || len(players) != 2 {
		t.Fatalf("unexpected decoded value: %#v", decoded)
	}
}

func TestGetMissesOnUnknownKey(t *testing.T) {
	entries := newCache(t)

	_, hit, err := entries.Get(context.Background(), "nope", "v1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Fatal("expected miss for unknown key")
	}
}

func TestVersionMismatchInvalidatesEntry(t *testing.T) {
	entries := newCache(t)
	ctx := context.Background()

	if err := entries.Set(ctx, "teams", []string{"hawks"}, time.Minute, "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	_, hit, err := entries.Get(ctx, "teams", "v2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Fatal("expected miss for version mismatch")
	}

	// Mismatch deletes the stored entry, so the original version misses too.
	_, hit, err = entries.Get(ctx, "teams", "v1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Fatal("expected entry to be dropped after mismatch")
	}
}

func TestExpiredEntryTreatedAsMiss(t *testing.T) {
	entries := newCache(t)
	ctx := context.Background()

	if err := entries.Set(ctx, "drills", []string{"d1"}, time.Millisecond, "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	_, hit, err := entries.Get(ctx, "drills", "v1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Fatal("expected expired entry to miss")
	}

	count, err := entries.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected expired entry deleted on read, %d remain", count)
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	entries := newCache(t)
	ctx := context.Background()

	if err := entries.Set(ctx, "persistent", "value", 0, "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	_, hit, err := entries.Get(ctx, "persistent", "v1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatal("expected entry without ttl to stay live")
	}
}

func TestPruneExpiredKeepsLiveEntries(t *testing.T) {
	entries := newCache(t)
	ctx := context.Background()

	if err := entries.Set(ctx, "stale", 1, time.Millisecond, "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := entries.Set(ctx, "live", 2, time.Hour, "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := entries.Set(ctx, "forever", 3, 0, "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	pruned, err := entries.PruneExpired(ctx)
	if err != nil {
		t.Fatalf("PruneExpired failed: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", pruned)
	}

	count, err := entries.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", count)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	entries := newCache(t)
	ctx := context.Background()

	if err := entries.Set(ctx, "a", 1, 0, "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := entries.Set(ctx, "b", 2, 0, "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	removed, err := entries.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
}
