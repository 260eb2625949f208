package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"satchel/internal/conflict"
	"satchel/internal/logging"
	"satchel/internal/notifications"
	"satchel/internal/records"
	"satchel/internal/storage"
	"satchel/internal/syncqueue"
)

// errManualConflict parks an update for human resolution. Like a validation
// failure it is terminal for the item: retrying cannot settle it.
var errManualConflict = errors.New("conflict requires manual resolution")

func (m *Manager) drain(ctx context.Context, opts Options) (Result, error) {
	trigger := opts.Trigger
	if trigger == "" {
		trigger = "manual"
	}
	ctx = logging.WithDrainID(ctx, uuid.NewString()[:8])
	ctx = logging.WithTrigger(ctx, trigger)
	logger := logging.WithContext(ctx, m.logger)

	items, err := m.queue.ListPending(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		logger.Debug("sync queue empty, nothing to drain")
		return Result{Success: true}, nil
	}

	start := time.Now()
	logger.Info("queue drain started", logging.Int("items", len(items)))
	m.publish(ctx, logger, notifications.EventSyncStarted, notifications.Payload{"count": len(items)})

	var result Result
	batchSize := m.cfg.Sync.BatchSize
	if batchSize <= 0 {
		batchSize = len(items)
	}
	for offset := 0; offset < len(items); offset += batchSize {
		end := offset + batchSize
		if end > len(items) {
			end = len(items)
		}
		for _, item := range items[offset:end] {
			if err := ctx.Err(); err != nil {
				result.Success = result.SyncedItems > result.FailedItems
				return result, err
			}
			m.processItem(ctx, logger, item, &result)
		}
	}

	if removed, err := m.queue.ClearCompleted(ctx); err != nil {
		logger.Warn("failed to clear completed queue items", logging.Error(err))
	} else if removed > 0 {
		logger.Debug("cleared completed queue items", logging.Int64("removed", removed))
	}

	result.Success = result.SyncedItems > result.FailedItems
	duration := time.Since(start)
	logger.Info("queue drain finished",
		logging.Bool("success", result.Success),
		logging.Int("synced", result.SyncedItems),
		logging.Int("failed", result.FailedItems),
		logging.Int("conflicts", len(result.Conflicts)),
		logging.Duration("duration", duration))
	m.publish(ctx, logger, notifications.EventSyncCompleted, notifications.Payload{
		"synced":   result.SyncedItems,
		"failed":   result.FailedItems,
		"duration": duration,
	})
	return result, nil
}

// processItem runs one queued mutation through the syncing state machine.
// Failures are recorded on the result and never abort the drain.
func (m *Manager) processItem(ctx context.Context, logger *slog.Logger, item *syncqueue.Item, result *Result) {
	itemLogger := logger.With(
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldTable, item.Table),
		logging.String(logging.FieldOperation, string(item.Operation)))

	if err := m.queue.MarkSyncing(ctx, item.ID); err != nil {
		itemLogger.Warn("failed to claim queue item", logging.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.ID, err))
		return
	}

	err := m.dispatch(ctx, itemLogger, item, result)
	if err == nil {
		if markErr := m.queue.MarkCompleted(ctx, item.ID); markErr != nil {
			itemLogger.Warn("failed to mark queue item completed", logging.Error(markErr))
		}
		result.SyncedItems++
		itemLogger.Debug("queue item synced")
		return
	}

	result.FailedItems++
	result.Errors = append(result.Errors, fmt.Sprintf("%s %s/%s: %v", item.Operation, item.Table, recordID(item), err))

	if !storage.Retryable(err) || errors.Is(err, errManualConflict) {
		// A malformed or manually parked item can never succeed on its own,
		// so the retry budget does not apply.
		if markErr := m.queue.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
			itemLogger.Warn("failed to mark queue item failed", logging.Error(markErr))
		}
		itemLogger.Warn("queue item failed permanently", logging.Error(err))
		m.publish(ctx, itemLogger, notifications.EventSyncError, notifications.Payload{
			"context": fmt.Sprintf("%s %s/%s", item.Operation, item.Table, recordID(item)),
			"error":   err,
		})
		return
	}

	next := item.RetryCount + 1
	if next >= m.cfg.Sync.MaxRetries {
		if markErr := m.queue.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
			itemLogger.Warn("failed to mark queue item failed", logging.Error(markErr))
		}
		itemLogger.Warn("queue item failed permanently",
			logging.Int("retry_count", next),
			logging.Error(err))
		m.publish(ctx, itemLogger, notifications.EventSyncError, notifications.Payload{
			"context": fmt.Sprintf("%s %s/%s", item.Operation, item.Table, recordID(item)),
			"error":   err,
		})
		return
	}
	if markErr := m.queue.MarkPendingRetry(ctx, item.ID, err.Error()); markErr != nil {
		itemLogger.Warn("failed to return queue item to pending", logging.Error(markErr))
	}
	itemLogger.Warn("queue item will retry",
		logging.Int("retry_count", next),
		logging.Error(err))
}

// dispatch routes one queued mutation to the matching remote call.
func (m *Manager) dispatch(ctx context.Context, logger *slog.Logger, item *syncqueue.Item, result *Result) error {
	if err := records.Validate(item.Table, string(item.Operation), item.Payload); err != nil {
		return err
	}

	switch item.Operation {
	case syncqueue.OpCreate:
		rec, err := storage.FromPayload(item.Table, item.Payload)
		if err != nil {
			return err
		}
		_, err = m.remote.Save(ctx, rec)
		return err
	case syncqueue.OpUpdate:
		return m.applyUpdate(ctx, logger, item, result)
	case syncqueue.OpDelete:
		id, _ := storage.PayloadID(item.Payload)
		return m.remote.Delete(ctx, item.Table, id)
	default:
		return storage.Wrap(storage.ErrValidation, item.Table, "dispatch",
			fmt.Sprintf("unsupported operation %q", item.Operation), nil)
	}
}

// applyUpdate pushes a queued partial update through conflict resolution
// against the current remote copy.
func (m *Manager) applyUpdate(ctx context.Context, logger *slog.Logger, item *syncqueue.Item, result *Result) error {
	id, _ := storage.PayloadID(item.Payload)

	remoteRec, err := m.remote.Get(ctx, item.Table, id)
	if err != nil {
		if storage.IsNotFound(err) {
			// The remote copy is gone; recreate it from the queued payload.
			rec, buildErr := storage.FromPayload(item.Table, item.Payload)
			if buildErr != nil {
				return buildErr
			}
			_, saveErr := m.remote.Save(ctx, rec)
			return saveErr
		}
		return err
	}

	outcome := m.resolver.Resolve(item.Table, id, item.Payload, &remoteRec)
	if outcome.Record != nil {
		result.Conflicts = append(result.Conflicts, *outcome.Record)
		logger.Info("conflicting update detected",
			logging.String(logging.FieldRecordID, id),
			logging.String("strategy", string(m.resolver.Strategy())),
			logging.String("outcome", outcome.Record.Outcome))
		m.publish(ctx, logger, notifications.EventConflict, notifications.Payload{
			"table":     item.Table,
			"record_id": id,
			"outcome":   outcome.Record.Outcome,
		})
	}

	switch outcome.Action {
	case conflict.ApplyMerged:
		rec, buildErr := storage.FromPayload(item.Table, outcome.Payload)
		if buildErr != nil {
			return buildErr
		}
		_, saveErr := m.remote.Save(ctx, rec)
		return saveErr
	case conflict.KeepRemote:
		// The remote copy stays authoritative; converge the local store
		// toward it so reads stop serving the losing write.
		if _, saveErr := m.local.Save(ctx, remoteRec); saveErr != nil {
			logger.Warn("failed to mirror winning remote copy locally",
				logging.String(logging.FieldRecordID, id),
				logging.Error(saveErr))
		}
		return nil
	case conflict.NeedsManual:
		return errManualConflict
	default:
		_, updateErr := m.remote.Update(ctx, item.Table, id, item.Payload)
		return updateErr
	}
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutdown in progress, notification skipped")
			return
		}
		logger.Debug("notification failed", logging.Error(err))
	}
}

func recordID(item *syncqueue.Item) string {
	if id, ok := storage.PayloadID(item.Payload); ok {
		return id
	}
	return "?"
}
