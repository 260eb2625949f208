package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"satchel/internal/config"
)

const userAgent = "Satchel-Go/0.1.0"

// Event identifies a notification-worthy moment in the sync lifecycle.
type Event string

const (
	EventSyncStarted   Event = "sync_started"
	EventSyncCompleted Event = "sync_completed"
	EventSyncError     Event = "sync_error"
	EventQueueBacklog  Event = "queue_backlog"
	EventConflict      Event = "conflict"
	EventTest          Event = "test"
)

// Payload carries the event-specific fields a formatter needs.
type Payload map[string]any

// Service publishes lifecycle events to the configured channel. Events the
// configuration suppresses return nil without sending.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		syncEvents:    cfg.Notifications.Sync,
		errorEvents:   cfg.Notifications.Errors,
		queueMinItems: cfg.Notifications.QueueMinItems,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	syncEvents    bool
	errorEvents   bool
	queueMinItems int
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	switch event {
	case EventSyncStarted:
		if !n.syncEvents {
			return nil
		}
		count := payloadInt(payload, "count")
		if count < n.queueMinItems {
			return nil
		}
		return n.send(ctx, message{
			title: "Satchel - Sync Started",
			body:  fmt.Sprintf("Draining %d queued changes", count),
			tags:  []string{"satchel", "sync", "started"},
		})
	case EventSyncCompleted:
		if !n.syncEvents {
			return nil
		}
		return n.send(ctx, n.formatSyncCompleted(payload))
	case EventSyncError:
		if !n.errorEvents {
			return nil
		}
		return n.send(ctx, formatSyncError(payload))
	case EventQueueBacklog:
		pending := payloadInt(payload, "pending")
		if pending < n.queueMinItems {
			return nil
		}
		return n.send(ctx, message{
			title: "Satchel - Queue Backlog",
			body:  fmt.Sprintf("⏳ %d changes waiting to sync", pending),
			tags:  []string{"satchel", "queue", "backlog"},
		})
	case EventConflict:
		if !n.errorEvents {
			return nil
		}
		return n.send(ctx, message{
			title: "Satchel - Conflict",
			body: fmt.Sprintf("⚠️ Conflict on %s/%s resolved as %s",
				payloadString(payload, "table"),
				payloadString(payload, "record_id"),
				payloadString(payload, "outcome")),
			tags:     []string{"satchel", "conflict", "review"},
			priority: "high",
		})
	case EventTest:
		return n.send(ctx, message{
			title:    "Satchel - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"satchel", "test"},
			priority: "low",
		})
	default:
		return nil
	}
}

func (n *ntfyService) formatSyncCompleted(payload Payload) message {
	synced := payloadInt(payload, "synced")
	failed := payloadInt(payload, "failed")
	duration := payloadDuration(payload, "duration").Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	if failed == 0 {
		return message{
			title: "Satchel - Sync Complete",
			body:  fmt.Sprintf("Sync complete: %d changes pushed in %s", synced, durationText),
			tags:  []string{"satchel", "sync", "completed"},
		}
	}
	return message{
		title: "Satchel - Sync Complete (with errors)",
		body:  fmt.Sprintf("Sync complete: %d pushed, %d failed in %s", synced, failed, durationText),
		tags:  []string{"satchel", "sync", "completed"},
	}
}

func formatSyncError(payload Payload) message {
	var builder strings.Builder
	builder.WriteString("❌ Sync error")
	if label := strings.TrimSpace(payloadString(payload, "context")); label != "" {
		builder.WriteString(" with ")
		builder.WriteString(label)
	}
	builder.WriteString(": ")
	switch err := payload["error"].(type) {
	case error:
		builder.WriteString(strings.TrimSpace(err.Error()))
	case string:
		builder.WriteString(strings.TrimSpace(err))
	default:
		builder.WriteString("unknown")
	}

	return message{
		title:    "Satchel - Sync Error",
		body:     builder.String(),
		tags:     []string{"satchel", "error", "alert"},
		priority: "high",
	}
}

func payloadString(payload Payload, key string) string {
	if value, ok := payload[key].(string); ok {
		return value
	}
	return ""
}

func payloadInt(payload Payload, key string) int {
	switch value := payload[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return 0
	}
}

func payloadDuration(payload Payload, key string) time.Duration {
	if value, ok := payload[key].(time.Duration); ok {
		return value
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
