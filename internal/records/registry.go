package records

import (
	"fmt"
	"sort"
	"strings"

	"satchel/internal/storage"
)

// Logical table names. The table field discriminates queue and cache payloads,
// so every mutation is validated against this registry before it is enqueued.
const (
	TablePlayers    = "players"
	TableTeams      = "teams"
	TableDrills     = "drills"
	TableTimerState = "timer_state"
)

// SchemaVersion tags persisted cache entries with the payload shape they hold.
// Bump it when a table's wire shape changes so stale entries read as misses.
const SchemaVersion = "1"

type tableSpec struct {
	synced   bool
	required []string
}

var tables = map[string]tableSpec{
	TablePlayers:    {synced: true, required: []string{"name"}},
	TableTeams:      {synced: true, required: []string{"name"}},
	TableDrills:     {synced: true, required: []string{"title"}},
	TableTimerState: {synced: false},
}

// Known reports whether the table name is registered.
func Known(table string) bool {
	_, ok := tables[table]
	return ok
}

// IsSynced reports whether mutations against the table are eligible for the
// sync queue. Ephemeral tables (timer state) are local-only.
func IsSynced(table string) bool {
	spec, ok := tables[table]
	return ok && spec.synced
}

// SyncedTables returns the ordered list of tables the remote store serves.
func SyncedTables() []string {
	out := make([]string, 0, len(tables))
	for name, spec := range tables {
		if spec.synced {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// AllTables returns every registered table, synced or not.
func AllTables() []string {
	out := make([]string, 0, len(tables))
	for name := range tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks a mutation payload against the registry before it enters
// the sync queue. Create payloads need an id plus the table's required
// fields; update and delete payloads need an id. Unknown tables and
// unsyncable tables are rejected outright.
func Validate(table, operation string, payload map[string]any) error {
	spec, ok := tables[table]
	if !ok {
		return storage.Wrap(storage.ErrValidation, table, operation, "unknown table", nil)
	}
	if !spec.synced {
		return storage.Wrap(storage.ErrValidation, table, operation, "table is local-only and cannot be queued", nil)
	}

	switch operation {
	case "create":
		if _, ok := storage.PayloadID(payload); !ok {
			return storage.Wrap(storage.ErrValidation, table, operation, "create operation requires data with id field", nil)
		}
		for _, field := range spec.required {
			if !hasNonEmpty(payload, field) {
				return storage.Wrap(storage.ErrValidation, table, operation,
					fmt.Sprintf("create operation requires %s field", field), nil)
			}
		}
	case "update":
		if _, ok := storage.PayloadID(payload); !ok {
			return storage.Wrap(storage.ErrValidation, table, operation, "update operation requires data with id field", nil)
		}
	case "delete":
		if _, ok := storage.PayloadID(payload); !ok {
			return storage.Wrap(storage.ErrValidation, table, operation, "delete operation requires data with id field", nil)
		}
	default:
		return storage.Wrap(storage.ErrValidation, table, operation, "unknown operation", nil)
	}
	return nil
}

func hasNonEmpty(payload map[string]any, field string) bool {
	value, ok := payload[field]
	if !ok {
		return false
	}
	if s, isString := value.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return value != nil
}
