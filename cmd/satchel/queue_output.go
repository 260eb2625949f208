package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"satchel/internal/api"
)

func buildQueueStatusRows(stats api.QueueStats) [][]string {
	rows := make([][]string, 0, 4)
	appendRow := func(label string, count int) {
		if count > 0 {
			rows = append(rows, []string{label, strconv.Itoa(count)})
		}
	}
	appendRow("Pending", stats.Pending)
	appendRow("Syncing", stats.Syncing)
	appendRow("Failed", stats.Failed)
	appendRow("Completed", stats.Completed)
	return rows
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Operation,
			item.Table,
			item.Status,
			strconv.Itoa(item.RetryCount),
			item.EnqueuedAt,
		})
	}
	return rows
}

func buildTableCountRows(counts map[string]int) [][]string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(counts[name])})
	}
	return rows
}

func printSyncReport(out io.Writer, report api.SyncReport) {
	if report.Success {
		fmt.Fprintf(out, "Sync completed: %d item(s) pushed\n", report.Synced)
	} else {
		fmt.Fprintf(out, "Sync finished with failures: %d pushed, %d failed\n", report.Synced, report.Failed)
	}
	for _, conflictNote := range report.Conflicts {
		fmt.Fprintf(out, "Conflict on %s/%s resolved via %s (%s)\n",
			conflictNote.Table, conflictNote.RecordID, conflictNote.Strategy, conflictNote.Outcome)
	}
	for _, message := range report.Errors {
		fmt.Fprintf(out, "Error: %s\n", message)
	}
}

func printQueueItemDetail(out io.Writer, item api.QueueItem) {
	fmt.Fprintf(out, "ID: %s\n", item.ID)
	fmt.Fprintf(out, "Operation: %s\n", item.Operation)
	fmt.Fprintf(out, "Table: %s\n", item.Table)
	fmt.Fprintf(out, "Status: %s\n", item.Status)
	fmt.Fprintf(out, "Retries: %d\n", item.RetryCount)
	if item.EnqueuedAt != "" {
		fmt.Fprintf(out, "Enqueued: %s\n", item.EnqueuedAt)
	}
	if item.UpdatedAt != "" {
		fmt.Fprintf(out, "Updated: %s\n", item.UpdatedAt)
	}
	if item.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", item.LastError)
	}
	if len(item.Payload) > 0 {
		fmt.Fprintf(out, "Payload: %s\n", payloadSummary(item.Payload))
	}
}

// payloadSummary renders payload fields as sorted key=value pairs so detail
// output stays stable across runs.
func payloadSummary(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, payload[key]))
	}
	return strings.Join(parts, " ")
}
