package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"satchel/internal/storage"
)

// Name implements storage.Provider.
func (s *Store) Name() string { return storage.ProviderLocal }

// GetAll returns every record held by a logical table, ordered by id.
func (s *Store) GetAll(ctx context.Context, table string) ([]storage.Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT table_name, id, payload, updated_at_ms FROM records WHERE table_name = ? ORDER BY id`,
		table,
	)
	if err != nil {
		return nil, storage.Wrap(storage.ErrUnavailable, table, "get all", "query records", err)
	}
	defer rows.Close()

	records := make([]storage.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storage.Wrap(storage.ErrUnavailable, table, "get all", "scan record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(storage.ErrUnavailable, table, "get all", "iterate records", err)
	}
	return records, nil
}

// Get returns a single record by id.
func (s *Store) Get(ctx context.Context, table, id string) (storage.Record, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT table_name, id, payload, updated_at_ms FROM records WHERE table_name = ? AND id = ?`,
		table, id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Record{}, storage.Wrap(storage.ErrNotFound, table, "get", fmt.Sprintf("record %s not found", id), nil)
		}
		return storage.Record{}, storage.Wrap(storage.ErrUnavailable, table, "get", "read record", err)
	}
	return rec, nil
}

// Save upserts a record by (table, id). A zero UpdatedAt is stamped with the
// current time; a non-zero one is preserved so replayed writes keep their
// original timestamps.
func (s *Store) Save(ctx context.Context, rec storage.Record) (storage.Record, error) {
	if rec.Table == "" || rec.ID == "" {
		return storage.Record{}, storage.Wrap(storage.ErrValidation, rec.Table, "save", "record requires table and id", nil)
	}
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = storage.NowMillis()
	}

	fields := rec.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return storage.Record{}, storage.Wrap(storage.ErrValidation, rec.Table, "save", "encode payload", err)
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO records (table_name, id, payload, updated_at_ms) VALUES (?, ?, ?, ?)
		 ON CONFLICT(table_name, id) DO UPDATE SET payload = excluded.payload, updated_at_ms = excluded.updated_at_ms`,
		rec.Table, rec.ID, string(payload), rec.UpdatedAt,
	); err != nil {
		return storage.Record{}, storage.Wrap(storage.ErrUnavailable, rec.Table, "save", "write record", err)
	}
	return rec.Clone(), nil
}

// Update merges partial onto the stored copy inside a transaction and bumps
// the modification time. Updating a missing record is an error rather than an
// implicit create.
func (s *Store) Update(ctx context.Context, table, id string, partial map[string]any) (storage.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Record{}, storage.Wrap(storage.ErrUnavailable, table, "update", "begin tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(
		ctx,
		`SELECT table_name, id, payload, updated_at_ms FROM records WHERE table_name = ? AND id = ?`,
		table, id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Record{}, storage.Wrap(storage.ErrNotFound, table, "update", fmt.Sprintf("record %s not found", id), nil)
		}
		return storage.Record{}, storage.Wrap(storage.ErrUnavailable, table, "update", "read record", err)
	}

	merged := rec.Merge(partial)
	payload, err := json.Marshal(merged.Fields)
	if err != nil {
		return storage.Record{}, storage.Wrap(storage.ErrValidation, table, "update", "encode payload", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE records SET payload = ?, updated_at_ms = ? WHERE table_name = ? AND id = ?`,
		string(payload), merged.UpdatedAt, table, id,
	); err != nil {
		return storage.Record{}, storage.Wrap(storage.ErrUnavailable, table, "update", "write record", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.Record{}, storage.Wrap(storage.ErrUnavailable, table, "update", "commit", err)
	}
	return merged, nil
}

// Delete removes a record. Deleting an absent record reports not found so
// callers can distinguish a no-op from a real removal.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE table_name = ? AND id = ?`, table, id)
	if err != nil {
		return storage.Wrap(storage.ErrUnavailable, table, "delete", "delete record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storage.Wrap(storage.ErrUnavailable, table, "delete", "rows affected", err)
	}
	if affected == 0 {
		return storage.Wrap(storage.ErrNotFound, table, "delete", fmt.Sprintf("record %s not found", id), nil)
	}
	return nil
}

// TableCounts reports how many records each logical table holds.
func (s *Store) TableCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT table_name, COUNT(1) FROM records GROUP BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("query table counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			table string
			count int
		)
		if err := rows.Scan(&table, &count); err != nil {
			return nil, fmt.Errorf("scan table count: %w", err)
		}
		counts[table] = count
	}
	return counts, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (storage.Record, error) {
	var (
		table     string
		id        string
		payload   string
		updatedAt int64
	)
	if err := scanner.Scan(&table, &id, &payload, &updatedAt); err != nil {
		return storage.Record{}, err
	}

	fields := make(map[string]any)
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &fields); err != nil {
			return storage.Record{}, fmt.Errorf("decode payload for %s/%s: %w", table, id, err)
		}
	}
	return storage.Record{Table: table, ID: id, Fields: fields, UpdatedAt: updatedAt}, nil
}
