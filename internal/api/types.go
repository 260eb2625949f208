package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queued mutation in a transport-friendly format.
type QueueItem struct {
	ID         string         `json:"id"`
	Operation  string         `json:"operation"`
	Table      string         `json:"table"`
	Payload    map[string]any `json:"payload,omitempty"`
	Status     string         `json:"status"`
	RetryCount int            `json:"retryCount"`
	LastError  string         `json:"lastError,omitempty"`
	EnqueuedAt string         `json:"enqueuedAt,omitempty"`
	UpdatedAt  string         `json:"updatedAt,omitempty"`
}

// QueueStats summarizes queue counts per lifecycle state and per table.
type QueueStats struct {
	Total     int            `json:"total"`
	Pending   int            `json:"pending"`
	Syncing   int            `json:"syncing"`
	Failed    int            `json:"failed"`
	Completed int            `json:"completed"`
	ByTable   map[string]int `json:"byTable,omitempty"`
}

// ConflictNote records one resolved conflict from a drain.
type ConflictNote struct {
	Table      string `json:"table"`
	RecordID   string `json:"recordId"`
	Strategy   string `json:"strategy"`
	Outcome    string `json:"outcome"`
	LocalTime  string `json:"localTime,omitempty"`
	RemoteTime string `json:"remoteTime,omitempty"`
}

// SyncReport summarizes one queue drain for API consumers.
type SyncReport struct {
	Success   bool           `json:"success"`
	Synced    int            `json:"synced"`
	Failed    int            `json:"failed"`
	Conflicts []ConflictNote `json:"conflicts,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
}

// ImportedPlayer identifies one record staged by a bulk import.
type ImportedPlayer struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running     bool           `json:"running"`
	Online      bool           `json:"online"`
	PID         int            `json:"pid"`
	DBPath      string         `json:"dbPath"`
	LockPath    string         `json:"lockPath"`
	Queue       QueueStats     `json:"queue"`
	TableCounts map[string]int `json:"tableCounts,omitempty"`
	LastSyncAt  string         `json:"lastSyncAt,omitempty"`
	LastSync    *SyncReport    `json:"lastSync,omitempty"`

	OldestPendingAt string `json:"oldestPendingAt,omitempty"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}
