package syncqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"satchel/internal/records"
	"satchel/internal/storage"
)

// Store manages the durable mutation queue. It shares the client database with
// the local record store and owns the sync_queue table.
type Store struct {
	db *sql.DB
}

const itemColumns = `id, operation, table_name, payload, enqueued_at_ms, retry_count, status, last_error, updated_at_ms`

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_queue (
    id             TEXT PRIMARY KEY,
    operation      TEXT NOT NULL,
    table_name     TEXT NOT NULL,
    payload        TEXT NOT NULL,
    enqueued_at_ms INTEGER NOT NULL,
    retry_count    INTEGER NOT NULL DEFAULT 0,
    status         TEXT NOT NULL DEFAULT 'pending',
    last_error     TEXT,
    updated_at_ms  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, enqueued_at_ms);
`

// NewStore binds the queue to an open database handle and ensures its schema.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database handle is nil")
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("ensure sync_queue schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Add enqueues a mutation. The payload is validated against the table registry
// before anything is written; rejected payloads never occupy a queue row. New
// items start pending with a zero retry count.
func (s *Store) Add(ctx context.Context, op Operation, table string, payload map[string]any) (*Item, error) {
	if _, ok := operationSet[op]; !ok {
		return nil, storage.Wrap(storage.ErrValidation, table, "enqueue", fmt.Sprintf("unknown operation %q", op), nil)
	}
	if err := records.Validate(table, string(op), payload); err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, storage.Wrap(storage.ErrValidation, table, "enqueue", "encode payload", err)
	}

	now := storage.NowMillis()
	item := &Item{
		ID:         uuid.NewString(),
		Operation:  op,
		Table:      table,
		Payload:    payload,
		EnqueuedAt: now,
		RetryCount: 0,
		Status:     StatusPending,
		UpdatedAt:  now,
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sync_queue (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Operation, item.Table, string(data),
		item.EnqueuedAt, item.RetryCount, item.Status, nil, item.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert queue item: %w", err)
	}
	return item, nil
}

// GetByID fetches one item. A missing id returns nil without error.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM sync_queue WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListPending returns drainable items, pending first enqueue order. Failed
// items below the retry ceiling re-enter as pending, so a drain considers
// both states.
func (s *Store) ListPending(ctx context.Context) ([]*Item, error) {
	return s.List(ctx, StatusPending, StatusFailed)
}

// List returns queue items filtered by status set (or all items when no
// status is provided), oldest enqueued first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM sync_queue`
	// rowid breaks enqueue-time ties so bursts inside one millisecond still
	// drain first-in first-out.
	orderClause := ` ORDER BY enqueued_at_ms, rowid`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// OldestPending returns the oldest drainable item, or nil when the queue has
// nothing to sync.
func (s *Store) OldestPending(ctx context.Context) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM sync_queue WHERE status IN (?, ?) ORDER BY enqueued_at_ms, rowid LIMIT 1`,
		StatusPending, StatusFailed,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// MarkSyncing claims an item for an in-flight drain. The status guard makes
// the claim atomic: a second drain loses the race and skips the item.
func (s *Store) MarkSyncing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sync_queue SET status = ?, updated_at_ms = ? WHERE id = ? AND status IN (?, ?)`,
		StatusSyncing, storage.NowMillis(), id, StatusPending, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("mark syncing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark syncing rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %s is not claimable", id)
	}
	return nil
}

// MarkCompleted records that the remote store confirmed the mutation.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE sync_queue SET status = ?, last_error = NULL, updated_at_ms = ? WHERE id = ?`,
		StatusCompleted, storage.NowMillis(), id,
	); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkPendingRetry returns a failed attempt to the pending state, counting the
// attempt and retaining the error for diagnostics.
func (s *Store) MarkPendingRetry(ctx context.Context, id, lastError string) error {
	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE sync_queue SET status = ?, retry_count = retry_count + 1, last_error = ?, updated_at_ms = ? WHERE id = ?`,
		StatusPending, nullableString(lastError), storage.NowMillis(), id,
	); err != nil {
		return fmt.Errorf("mark pending retry: %w", err)
	}
	return nil
}

// MarkFailed parks an item past the retry ceiling (or terminally rejected).
// Failed items stay queued for inspection until retried or cleared.
func (s *Store) MarkFailed(ctx context.Context, id, lastError string) error {
	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE sync_queue SET status = ?, retry_count = retry_count + 1, last_error = ?, updated_at_ms = ? WHERE id = ?`,
		StatusFailed, nullableString(lastError), storage.NowMillis(), id,
	); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ClearCompleted deletes confirmed items and reports how many were removed.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ResetFailed returns every failed item to pending with a fresh retry budget.
func (s *Store) ResetFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sync_queue SET status = ?, retry_count = 0, last_error = NULL, updated_at_ms = ? WHERE status = ?`,
		StatusPending, storage.NowMillis(), StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("reset failed: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes a single item regardless of state.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove item rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %s not found", id)
	}
	return nil
}

// Stats aggregates queue counts per status and per table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByTable: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM sync_queue GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan queue stats: %w", err)
		}
		stats.Total += count
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusSyncing:
			stats.Syncing = count
		case StatusFailed:
			stats.Failed = count
		case StatusCompleted:
			stats.Completed = count
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	tableRows, err := s.db.QueryContext(ctx, `SELECT table_name, COUNT(1) FROM sync_queue GROUP BY table_name`)
	if err != nil {
		return Stats{}, fmt.Errorf("queue table stats: %w", err)
	}
	defer tableRows.Close()

	for tableRows.Next() {
		var (
			table string
			count int
		)
		if err := tableRows.Scan(&table, &count); err != nil {
			return Stats{}, fmt.Errorf("scan queue table stats: %w", err)
		}
		stats.ByTable[table] = count
	}
	return stats, tableRows.Err()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item       Item
		payload    string
		lastError  sql.NullString
		rawOp      string
		rawStatus  string
		enqueuedAt int64
		updatedAt  int64
	)
	if err := scanner.Scan(
		&item.ID, &rawOp, &item.Table, &payload,
		&enqueuedAt, &item.RetryCount, &rawStatus, &lastError, &updatedAt,
	); err != nil {
		return nil, err
	}

	item.Operation = Operation(rawOp)
	item.Status = Status(rawStatus)
	item.EnqueuedAt = enqueuedAt
	item.UpdatedAt = updatedAt
	if lastError.Valid {
		item.LastError = lastError.String
	}

	item.Payload = make(map[string]any)
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &item.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for item %s: %w", item.ID, err)
		}
	}
	return &item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	placeholders := "?"
	for i := 1; i < n; i++ {
		placeholders += ", ?"
	}
	return placeholders
}
