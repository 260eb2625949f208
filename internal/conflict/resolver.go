package conflict

import (
	"fmt"
	"strings"

	"satchel/internal/storage"
)

// Strategy selects how a queued update reconciles with the authoritative copy
// once the remote store is reachable again.
type Strategy string

const (
	// LastWriteWins lets the newer timestamp win. Ties go to the queued
	// local write.
	LastWriteWins Strategy = "last-write-wins"
	// RemoteWins keeps the remote copy whenever it changed after the queued
	// write.
	RemoteWins Strategy = "remote-wins"
	// MergeFields overlays the queued fields onto the remote copy, favoring
	// local values where both sides touched the same field.
	MergeFields Strategy = "merge"
	// UserChoice refuses to resolve automatically and parks the item for
	// manual review.
	UserChoice Strategy = "user-choice"
)

// ParseStrategy validates a configured strategy name. An empty name selects
// the default.
func ParseStrategy(raw string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case "":
		return LastWriteWins, nil
	case LastWriteWins, RemoteWins, MergeFields, UserChoice:
		return s, nil
	default:
		return "", fmt.Errorf("unknown conflict strategy %q", raw)
	}
}

// Action is the resolver's verdict for one queued mutation.
type Action int

const (
	// ApplyLocal pushes the queued payload unchanged.
	ApplyLocal Action = iota
	// KeepRemote drops the queued payload; the remote copy stands.
	KeepRemote
	// ApplyMerged pushes the merged payload.
	ApplyMerged
	// NeedsManual parks the item until a person decides.
	NeedsManual
)

func (a Action) String() string {
	switch a {
	case ApplyLocal:
		return "apply-local"
	case KeepRemote:
		return "keep-remote"
	case ApplyMerged:
		return "apply-merged"
	case NeedsManual:
		return "needs-manual"
	default:
		return "unknown"
	}
}

// Record documents one detected conflict for logs and drain results.
type Record struct {
	Table      string
	RecordID   string
	Strategy   Strategy
	LocalTime  int64
	RemoteTime int64
	Outcome    string
}

// Outcome carries the verdict plus the payload to push when one applies.
type Outcome struct {
	Action   Action
	Payload  map[string]any
	Conflict bool
	Record   *Record
}

// Resolver reconciles queued updates against the current remote copy.
// Detection inspects the single last-modified timestamp on each side: the
// remote copy changing after the queued write is the only conflict signal.
// There is no field-level diffing.
type Resolver struct {
	strategy Strategy
}

// New creates a resolver with the given strategy.
func New(strategy Strategy) *Resolver {
	return &Resolver{strategy: strategy}
}

// Strategy returns the configured strategy.
func (r *Resolver) Strategy() Strategy {
	return r.strategy
}

// Resolve reconciles one queued update payload with the current remote record.
// A nil remote means the record has no remote copy and the payload applies
// cleanly. A payload without a timestamp is treated as older than any remote
// change.
func (r *Resolver) Resolve(table, id string, payload map[string]any, remote *storage.Record) Outcome {
	if remote == nil {
		return Outcome{Action: ApplyLocal, Payload: payload}
	}

	localTime, _ := storage.PayloadTimestamp(payload)
	if remote.UpdatedAt <= localTime {
		return Outcome{Action: ApplyLocal, Payload: payload}
	}

	rec := &Record{
		Table:      table,
		RecordID:   id,
		Strategy:   r.strategy,
		LocalTime:  localTime,
		RemoteTime: remote.UpdatedAt,
	}

	switch r.strategy {
	case MergeFields:
		merged := remote.Payload()
		for k, v := range payload {
			if k == "updatedAt" {
				continue
			}
			merged[k] = v
		}
		// The merged result is a fresh write, not either ancestor.
		merged["updatedAt"] = storage.NowMillis()
		rec.Outcome = "merged"
		return Outcome{Action: ApplyMerged, Payload: merged, Conflict: true, Record: rec}
	case UserChoice:
		rec.Outcome = "manual"
		return Outcome{Action: NeedsManual, Conflict: true, Record: rec}
	default:
		// Both last-write-wins and remote-wins land here: inside the
		// conflict branch the remote copy is the newer write.
		rec.Outcome = "remote"
		return Outcome{Action: KeepRemote, Conflict: true, Record: rec}
	}
}
