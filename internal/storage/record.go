package storage

import (
	"encoding/json"
	"time"
)

// Record is a business entity held by a named logical table. Fields carries
// the entity body without the id; UpdatedAt is the last modification time in
// Unix milliseconds and drives conflict resolution.
type Record struct {
	Table     string
	ID        string
	Fields    map[string]any
	UpdatedAt int64
}

// NewRecord builds a record stamped with the current time.
func NewRecord(table, id string, fields map[string]any) Record {
	return Record{
		Table:     table,
		ID:        id,
		Fields:    cloneFields(fields),
		UpdatedAt: NowMillis(),
	}
}

// NowMillis returns the current time in Unix milliseconds, the timestamp unit
// used across queue items, cache entries, and records.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Clone returns a deep copy so callers can mutate fields without sharing state.
func (r Record) Clone() Record {
	cp := r
	cp.Fields = cloneFields(r.Fields)
	return cp
}

// Payload flattens the record into the wire shape used by the remote store and
// the sync queue: the field map plus reserved "id" and "updatedAt" entries.
func (r Record) Payload() map[string]any {
	payload := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		payload[k] = cloneValue(v)
	}
	payload["id"] = r.ID
	payload["updatedAt"] = r.UpdatedAt
	return payload
}

// Merge returns a copy with partial applied over the existing fields and the
// modification time bumped. Reserved keys are routed to their struct fields.
func (r Record) Merge(partial map[string]any) Record {
	merged := r.Clone()
	for k, v := range partial {
		switch k {
		case "id":
			continue
		case "updatedAt":
			if ms, ok := asMillis(v); ok {
				merged.UpdatedAt = ms
			}
			continue
		}
		merged.Fields[k] = cloneValue(v)
	}
	if merged.UpdatedAt <= r.UpdatedAt {
		merged.UpdatedAt = NowMillis()
		// Same-millisecond edits still advance the clock so last-write-wins
		// ordering holds between consecutive local updates.
		if merged.UpdatedAt <= r.UpdatedAt {
			merged.UpdatedAt = r.UpdatedAt + 1
		}
	}
	return merged
}

// FromPayload rebuilds a record from its wire shape. The id entry is required;
// a missing updatedAt defaults to now.
func FromPayload(table string, payload map[string]any) (Record, error) {
	id, ok := payload["id"].(string)
	if !ok || id == "" {
		return Record{}, Wrap(ErrValidation, table, "decode", "payload missing id field", nil)
	}
	rec := Record{
		Table:     table,
		ID:        id,
		Fields:    make(map[string]any, len(payload)),
		UpdatedAt: NowMillis(),
	}
	for k, v := range payload {
		switch k {
		case "id":
			continue
		case "updatedAt":
			if ms, ok := asMillis(v); ok {
				rec.UpdatedAt = ms
			}
			continue
		}
		rec.Fields[k] = cloneValue(v)
	}
	return rec, nil
}

// PayloadID extracts the id entry from a mutation payload.
func PayloadID(payload map[string]any) (string, bool) {
	id, ok := payload["id"].(string)
	return id, ok && id != ""
}

// PayloadTimestamp extracts the updatedAt entry from a mutation payload.
func PayloadTimestamp(payload map[string]any) (int64, bool) {
	value, ok := payload["updatedAt"]
	if !ok {
		return 0, false
	}
	return asMillis(value)
}

func asMillis(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func cloneFields(fields map[string]any) map[string]any {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = cloneValue(v)
	}
	return cp
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return cloneFields(v)
	case []any:
		cp := make([]any, len(v))
		for i, item := range v {
			cp[i] = cloneValue(item)
		}
		return cp
	default:
		return v
	}
}
