package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"satchel/internal/config"
	"satchel/internal/storage"
)

// Store owns satchel.db, the client-side database holding records, cache
// entries, and timer state. The sync queue shares the same handle through DB.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the database and applies migrations. Every
// failure is tagged unavailable so callers can refuse reads and writes instead
// of operating on a half-initialized store.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, storage.Wrap(storage.ErrUnavailable, "local store", "open", "ensure directories", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storage.Wrap(storage.ErrUnavailable, "local store", "open", "open sqlite db", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, storage.Wrap(storage.ErrUnavailable, "local store", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, storage.Wrap(storage.ErrUnavailable, "local store", "open", "apply migrations", err)
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the shared connection for sibling stores that live in the same
// database file, such as the sync queue.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// DatabaseHealth describes diagnostic information about the database file.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TablesPresent    []string
	TablesMissing    []string
	IntegrityCheck   bool
	Error            string
}

// coreTables are the tables migrations must have produced for the store to be
// considered healthy. sync_queue is owned by the queue store and checked there.
var coreTables = []string{"records", "cache_entries", "timer_state"}

// CheckHealth returns diagnostic information about the local database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	var version sql.NullString
	row := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1")
	if err := row.Scan(&version); err != nil && !errors.Is(err, sql.ErrNoRows) {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}
	if version.Valid {
		health.SchemaVersion = version.String
	}

	for _, table := range coreTables {
		var name string
		row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		if err := row.Scan(&name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				health.TablesMissing = append(health.TablesMissing, table)
				continue
			}
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
		health.TablesPresent = append(health.TablesPresent, table)
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = integrity == "ok"

	return health, nil
}
