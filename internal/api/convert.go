package api

import (
	"time"

	"satchel/internal/conflict"
	"satchel/internal/storage"
	"satchel/internal/syncer"
	"satchel/internal/syncqueue"
)

// FromQueueItem converts a queue row to its API representation.
func FromQueueItem(item *syncqueue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	return QueueItem{
		ID:         item.ID,
		Operation:  string(item.Operation),
		Table:      item.Table,
		Payload:    item.Payload,
		Status:     string(item.Status),
		RetryCount: item.RetryCount,
		LastError:  item.LastError,
		EnqueuedAt: FormatMillis(item.EnqueuedAt),
		UpdatedAt:  FormatMillis(item.UpdatedAt),
	}
}

// FromQueueItems converts a slice of queue rows into API DTOs.
func FromQueueItems(items []*syncqueue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromQueueStats converts queue counters to the API payload.
func FromQueueStats(stats syncqueue.Stats) QueueStats {
	out := QueueStats{
		Total:     stats.Total,
		Pending:   stats.Pending,
		Syncing:   stats.Syncing,
		Failed:    stats.Failed,
		Completed: stats.Completed,
	}
	if len(stats.ByTable) > 0 {
		out.ByTable = make(map[string]int, len(stats.ByTable))
		for table, count := range stats.ByTable {
			out.ByTable[table] = count
		}
	}
	return out
}

// FromSyncResult converts a drain result to the API report.
func FromSyncResult(result syncer.Result) SyncReport {
	report := SyncReport{
		Success: result.Success,
		Synced:  result.SyncedItems,
		Failed:  result.FailedItems,
	}
	if len(result.Conflicts) > 0 {
		report.Conflicts = make([]ConflictNote, 0, len(result.Conflicts))
		for _, rec := range result.Conflicts {
			report.Conflicts = append(report.Conflicts, FromConflictRecord(rec))
		}
	}
	if len(result.Errors) > 0 {
		report.Errors = append(report.Errors, result.Errors...)
	}
	return report
}

// FromConflictRecord converts one resolved conflict to the API note.
func FromConflictRecord(rec conflict.Record) ConflictNote {
	return ConflictNote{
		Table:      rec.Table,
		RecordID:   rec.RecordID,
		Strategy:   string(rec.Strategy),
		Outcome:    rec.Outcome,
		LocalTime:  FormatMillis(rec.LocalTime),
		RemoteTime: FormatMillis(rec.RemoteTime),
	}
}

// FromImportedRecords summarizes staged import records for API responses.
func FromImportedRecords(recs []storage.Record) []ImportedPlayer {
	if len(recs) == 0 {
		return nil
	}
	out := make([]ImportedPlayer, 0, len(recs))
	for _, rec := range recs {
		player := ImportedPlayer{ID: rec.ID}
		if name, ok := rec.Fields["name"].(string); ok {
			player.Name = name
		}
		out = append(out, player)
	}
	return out
}

// FormatMillis converts a Unix-millisecond timestamp to RFC3339 or returns
// an empty string for the zero value.
func FormatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(dateTimeFormat)
}
