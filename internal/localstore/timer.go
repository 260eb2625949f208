package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"satchel/internal/storage"
)

// SaveTimerState persists ephemeral session timer state. Timer state lives in
// its own table, outside the synced record tables, and never enters the sync
// queue.
func (s *Store) SaveTimerState(ctx context.Context, id string, state map[string]any) error {
	if id == "" {
		return storage.Wrap(storage.ErrValidation, "timer_state", "save", "state requires id", nil)
	}
	if state == nil {
		state = map[string]any{}
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return storage.Wrap(storage.ErrValidation, "timer_state", "save", "encode state", err)
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO timer_state (id, payload, updated_at_ms) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at_ms = excluded.updated_at_ms`,
		id, string(payload), storage.NowMillis(),
	); err != nil {
		return storage.Wrap(storage.ErrUnavailable, "timer_state", "save", "write state", err)
	}
	return nil
}

// TimerState loads previously saved timer state by id.
func (s *Store) TimerState(ctx context.Context, id string) (map[string]any, error) {
	var payload string
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM timer_state WHERE id = ?`, id)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.Wrap(storage.ErrNotFound, "timer_state", "get", fmt.Sprintf("state %s not found", id), nil)
		}
		return nil, storage.Wrap(storage.ErrUnavailable, "timer_state", "get", "read state", err)
	}

	state := make(map[string]any)
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, storage.Wrap(storage.ErrUnavailable, "timer_state", "get", "decode state", err)
	}
	return state, nil
}

// DeleteTimerState clears saved timer state. Clearing absent state is a no-op
// so session teardown never fails on a state that was never written.
func (s *Store) DeleteTimerState(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM timer_state WHERE id = ?`, id); err != nil {
		return storage.Wrap(storage.ErrUnavailable, "timer_state", "delete", "delete state", err)
	}
	return nil
}
