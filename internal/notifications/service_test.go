package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"satchel/internal/config"
	"satchel/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventSyncCompleted, notifications.Payload{"synced": 3}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "sync started",
			event: notifications.EventSyncStarted,
			payload: notifications.Payload{
				"count": 4,
			},
			expectTitle:   "Satchel - Sync Started",
			expectMessage: "Draining 4 queued changes",
			expectTags:    "satchel,sync,started",
		},
		{
			name:  "sync completed clean",
			event: notifications.EventSyncCompleted,
			payload: notifications.Payload{
				"synced":   7,
				"failed":   0,
				"duration": 3 * time.Second,
			},
			expectTitle:   "Satchel - Sync Complete",
			expectMessage: "Sync complete: 7 changes pushed in 3s",
			expectTags:    "satchel,sync,completed",
		},
		{
			name:  "sync completed with failures",
			event: notifications.EventSyncCompleted,
			payload: notifications.Payload{
				"synced":   5,
				"failed":   2,
				"duration": time.Duration(0),
			},
			expectTitle:   "Satchel - Sync Complete (with errors)",
			expectMessage: "Sync complete: 5 pushed, 2 failed in 0s",
			expectTags:    "satchel,sync,completed",
		},
		{
			name:  "sync error",
			event: notifications.EventSyncError,
			payload: notifications.Payload{
				"context": "queue drain",
				"error":   errors.New("remote unreachable"),
			},
			expectTitle:    "Satchel - Sync Error",
			expectMessage:  "❌ Sync error with queue drain: remote unreachable",
			expectTags:     "satchel,error,alert",
			expectPriority: "high",
		},
		{
			name:  "queue backlog",
			event: notifications.EventQueueBacklog,
			payload: notifications.Payload{
				"pending": 12,
			},
			expectTitle:   "Satchel - Queue Backlog",
			expectMessage: "⏳ 12 changes waiting to sync",
			expectTags:    "satchel,queue,backlog",
		},
		{
			name:  "conflict",
			event: notifications.EventConflict,
			payload: notifications.Payload{
				"table":     "players",
				"record_id": "p1",
				"outcome":   "manual",
			},
			expectTitle:    "Satchel - Conflict",
			expectMessage:  "⚠️ Conflict on players/p1 resolved as manual",
			expectTags:     "satchel,conflict,review",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsConfigToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Sync = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	suppressed := []struct {
		event   notifications.Event
		payload notifications.Payload
	}{
		{notifications.EventSyncStarted, notifications.Payload{"count": 5}},
		{notifications.EventSyncCompleted, notifications.Payload{"synced": 5}},
		{notifications.EventSyncError, notifications.Payload{"error": "boom"}},
		{notifications.EventConflict, notifications.Payload{"table": "players"}},
	}

	for _, tc := range suppressed {
		if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", tc.event, err)
		}
	}
}

func TestNtfyServiceSuppressesSmallBacklogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call below the backlog threshold: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.QueueMinItems = 10

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventQueueBacklog, notifications.Payload{"pending": 3}); err != nil {
		t.Fatalf("expected suppressed backlog to return nil, got %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.EventSyncStarted, notifications.Payload{"count": 2}); err != nil {
		t.Fatalf("expected below-threshold start to return nil, got %v", err)
	}
}

func TestNtfyServiceReportsServerFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
