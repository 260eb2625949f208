package ipc

import "satchel/internal/api"

// QueueItem mirrors the shared queue DTO for IPC callers.
type QueueItem = api.QueueItem

// QueueStats mirrors the shared queue summary DTO.
type QueueStats = api.QueueStats

// SyncReport mirrors the shared drain report DTO.
type SyncReport = api.SyncReport

// ImportedPlayer mirrors the shared import result DTO.
type ImportedPlayer = api.ImportedPlayer

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries combined daemon runtime information.
type StatusResponse = api.DaemonStatus

// SyncRequest triggers an immediate queue drain. RetryFailed resets failed
// items to pending before draining.
type SyncRequest struct {
	RetryFailed bool `json:"retryFailed"`
}

// SyncResponse reports the drain outcome.
type SyncResponse = api.SyncReport

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueStatsRequest fetches aggregate queue counts.
type QueueStatsRequest struct{}

// QueueStatsResponse reports queue counts per lifecycle state.
type QueueStatsResponse = api.QueueStats

// QueueDescribeRequest fetches a single queue item by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse contains a single queue entry when found.
type QueueDescribeResponse struct {
	Found bool      `json:"found"`
	Item  QueueItem `json:"item"`
}

// QueueClearCompletedRequest removes completed items.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueRetryRequest resets failed items and drains them again.
type QueueRetryRequest struct{}

// QueueRetryResponse reports the retry drain outcome.
type QueueRetryResponse = api.SyncReport

// QueueRemoveRequest removes specific items by id. Empty list is invalid.
type QueueRemoveRequest struct {
	IDs []string `json:"ids"`
}

// QueueRemoveResponse reports number of removed entries.
type QueueRemoveResponse struct {
	Removed int64 `json:"removed"`
}

// ImportRequest stages a roster import through the daemon.
type ImportRequest struct {
	Players []map[string]any `json:"players"`
}

// ImportResponse lists the records staged by the import.
type ImportResponse struct {
	Players []ImportedPlayer `json:"players"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"dbPath"`
	DatabaseExists   bool     `json:"databaseExists"`
	DatabaseReadable bool     `json:"databaseReadable"`
	SchemaVersion    string   `json:"schemaVersion"`
	TablesPresent    []string `json:"tablesPresent"`
	TablesMissing    []string `json:"tablesMissing"`
	IntegrityCheck   bool     `json:"integrityCheck"`
	Error            string   `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
