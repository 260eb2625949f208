package main

import (
	"context"
	"testing"

	"satchel/internal/records"
	"satchel/internal/storage"
)

func seedLocalPlayer(t *testing.T, env *cliTestEnv, id, name string) {
	t.Helper()
	rec := storage.NewRecord(records.TablePlayers, id, map[string]any{"name": name})
	if _, err := env.store.Save(context.Background(), rec); err != nil {
		t.Fatalf("seed local player: %v", err)
	}
}

// The test config points the remote at an unreachable address, so listing with
// the default remote primary exercises the classified-failure detour end to
// end: the command still answers from the local store.
func TestRecordsListFallsBackToLocalStore(t *testing.T) {
	env := setupCLITestEnv(t)
	seedLocalPlayer(t, env, "p1", "Dana Scully")

	stdout, _, err := runCLI(t, []string{"records", "list", "players"}, missingSocket(t), env.configPath)
	if err != nil {
		t.Fatalf("records list: %v", err)
	}
	requireContains(t, stdout, "p1")
	requireContains(t, stdout, "remote provider")
}

func TestRecordsListProviderOverride(t *testing.T) {
	env := setupCLITestEnv(t)
	seedLocalPlayer(t, env, "p2", "Fox Mulder")

	stdout, _, err := runCLI(t, []string{"records", "list", "players", "--provider", "local"}, missingSocket(t), env.configPath)
	if err != nil {
		t.Fatalf("records list --provider local: %v", err)
	}
	requireContains(t, stdout, "p2")
	requireContains(t, stdout, "local provider")
}

func TestRecordsGetReadsOneRecord(t *testing.T) {
	env := setupCLITestEnv(t)
	seedLocalPlayer(t, env, "p3", "Walter Skinner")

	stdout, _, err := runCLI(t, []string{"records", "get", "players", "p3", "--provider", "local"}, missingSocket(t), env.configPath)
	if err != nil {
		t.Fatalf("records get: %v", err)
	}
	requireContains(t, stdout, "p3")
	requireContains(t, stdout, "Walter Skinner")
}

func TestRecordsListRejectsUnknownProvider(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"records", "list", "players", "--provider", "cloud"}, missingSocket(t), env.configPath)
	if err == nil {
		t.Fatal("expected unknown provider to be rejected")
	}
}
