package syncqueue

import "strings"

// Operation names the kind of queued mutation.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

var allOperations = []Operation{OpCreate, OpUpdate, OpDelete}

var operationSet = func() map[Operation]struct{} {
	set := make(map[Operation]struct{}, len(allOperations))
	for _, op := range allOperations {
		set[op] = struct{}{}
	}
	return set
}()

// ParseOperation validates a raw operation string.
func ParseOperation(raw string) (Operation, bool) {
	op := Operation(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := operationSet[op]
	return op, ok
}

// Status represents the lifecycle of a queued mutation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSyncing   Status = "syncing"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

var allStatuses = []Status{
	StatusPending,
	StatusSyncing,
	StatusFailed,
	StatusCompleted,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := statusSet[status]
	return status, ok
}

// Item is a queued mutation persisted in SQLite. Exactly one row exists per
// queued mutation; rows survive process restarts and are removed only once the
// remote store confirms the mutation or the retry ceiling marks it failed and
// an operator clears it.
type Item struct {
	ID         string
	Operation  Operation
	Table      string
	Payload    map[string]any
	EnqueuedAt int64
	RetryCount int
	Status     Status
	LastError  string
	UpdatedAt  int64
}

// Stats aggregates queue counts per lifecycle state. Reading stats never
// mutates the queue.
type Stats struct {
	Total     int
	Pending   int
	Syncing   int
	Failed    int
	Completed int
	ByTable   map[string]int
}
