package testsupport

import (
	"context"
	"testing"

	"satchel/internal/config"
	"satchel/internal/localstore"
	"satchel/internal/storage"
	"satchel/internal/syncqueue"
)

// MustOpenStore opens the client database for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *localstore.Store {
	t.Helper()

	store, err := localstore.Open(cfg)
	if err != nil {
		t.Fatalf("localstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenQueue binds a sync queue to the test database.
func MustOpenQueue(t testing.TB, store *localstore.Store) *syncqueue.Store {
	t.Helper()

	queue, err := syncqueue.NewStore(store.DB())
	if err != nil {
		t.Fatalf("syncqueue.NewStore: %v", err)
	}
	return queue
}

// SeedRecord saves a record directly into the local store.
func SeedRecord(t testing.TB, store *localstore.Store, table, id string, fields map[string]any) storage.Record {
	t.Helper()

	rec, err := store.Save(context.Background(), storage.NewRecord(table, id, fields))
	if err != nil {
		t.Fatalf("store.Save: %v", err)
	}
	return rec
}
