package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTable is the standardized structured logging key for logical table names.
	FieldTable = "table"
	// FieldRecordID is the standardized structured logging key for record identifiers.
	FieldRecordID = "record_id"
	// FieldItemID is the standardized structured logging key for sync queue item identifiers.
	FieldItemID = "item_id"
	// FieldOperation is the standardized structured logging key for queued mutation kinds.
	FieldOperation = "operation"
	// FieldProvider is the standardized structured logging key for storage provider names.
	FieldProvider = "provider"
	// FieldDrainID is the standardized structured logging key for queue drain identifiers.
	FieldDrainID = "drain_id"
	// FieldTrigger is the standardized structured logging key for what started a drain.
	FieldTrigger = "trigger"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator guidance on failures.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

type contextKey int

const (
	drainIDKey contextKey = iota
	triggerKey
)

// WithDrainID tags the context with the identifier of the active queue drain.
func WithDrainID(ctx context.Context, drainID string) context.Context {
	if drainID == "" {
		return ctx
	}
	return context.WithValue(ctx, drainIDKey, drainID)
}

// DrainIDFromContext reports the active drain identifier, if any.
func DrainIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(drainIDKey).(string)
	return id, ok && id != ""
}

// WithTrigger tags the context with what started the current drain
// (for example "manual", "online", "interval", "import").
func WithTrigger(ctx context.Context, trigger string) context.Context {
	if trigger == "" {
		return ctx
	}
	return context.WithValue(ctx, triggerKey, trigger)
}

// TriggerFromContext reports the drain trigger recorded on the context, if any.
func TriggerFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	trigger, ok := ctx.Value(triggerKey).(string)
	return trigger, ok && trigger != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := DrainIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDrainID, id))
	}
	if trigger, ok := TriggerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTrigger, trigger))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
