package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"satchel/internal/storage"
)

// Store persists versioned cache entries in the cache_entries table of the
// client database. The cache is a side channel for remote reads; it is never
// authoritative and losing it costs nothing but a refetch.
type Store struct {
	db *sql.DB
}

// NewStore binds the cache to an open database handle.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database handle is nil")
	}
	return &Store{db: db}, nil
}

// Set stores value under key. A non-positive ttl means the entry never
// expires. The version tag guards against stale shapes after an app upgrade:
// readers supply their current version and mismatched entries are treated as
// absent.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration, version string) error {
	if key == "" {
		return errors.New("cache key is empty")
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	now := storage.NowMillis()
	var expires any
	if ttl > 0 {
		expires = now + ttl.Milliseconds()
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cache_entries (cache_key, payload, timestamp_ms, version, expires_at_ms) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, timestamp_ms = excluded.timestamp_ms,
		     version = excluded.version, expires_at_ms = excluded.expires_at_ms`,
		key, string(payload), now, version, expires,
	); err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}

// Get returns the raw payload for key when the entry is live and its version
// matches. Expired or version-mismatched entries are deleted on read and
// reported as a miss.
func (s *Store) Get(ctx context.Context, key, version string) (json.RawMessage, bool, error) {
	var (
		payload     string
		storedVer   string
		expiresAtMs sql.NullInt64
	)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT payload, version, expires_at_ms FROM cache_entries WHERE cache_key = ?`,
		key,
	)
	if err := row.Scan(&payload, &storedVer, &expiresAtMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry %s: %w", key, err)
	}

	expired := expiresAtMs.Valid && expiresAtMs.Int64 <= storage.NowMillis()
	if expired || storedVer != version {
		if err := s.Delete(ctx, key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return json.RawMessage(payload), true, nil
}

// GetJSON decodes a live entry into out and reports whether it was a hit.
func (s *Store) GetJSON(ctx context.Context, key, version string, out any) (bool, error) {
	payload, ok, err := s.Get(ctx, key, version)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// Delete removes an entry. Deleting an absent entry is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}

// Clear wipes the cache and reports how many entries were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return res.RowsAffected()
}

// PruneExpired removes entries whose ttl has elapsed. The daemon runs this
// periodically so abandoned entries do not accumulate between reads.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM cache_entries WHERE expires_at_ms IS NOT NULL AND expires_at_ms <= ?`,
		storage.NowMillis(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}

// Len reports the number of stored entries, live or expired.
func (s *Store) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM cache_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return count, nil
}
