package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proofbuild/internal/config"
	"proofbuild/internal/notifications"
)

type captured struct {
	title, tags, priority, body string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var requests []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(cfg.Notifications)
	if err := svc.NotifyProjectReady(context.Background(), "p1", time.Second); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "project ready",
			send: func(s notifications.Service) error {
				return s.NotifyProjectReady(context.Background(), "p1", 90*time.Second+400*time.Millisecond)
			},
			expectTitle:   "Proofbuild - Ready",
			expectMessage: "✅ Ready for playback: p1 (1m30s)",
			expectTags:    "proofbuild,project,ready",
		},
		{
			name: "project failed",
			send: func(s notifications.Service) error {
				return s.NotifyProjectFailed(context.Background(), "p2", "generate-script", errors.New("rate limited"))
			},
			expectTitle:    "Proofbuild - Error",
			expectMessage:  "❌ p2 failed after generate-script: rate limited",
			expectTags:     "proofbuild,error,alert",
			expectPriority: "high",
		},
		{
			name: "poll failed",
			send: func(s notifications.Service) error {
				return s.NotifyPollFailed(context.Background(), errors.New("bucket unreachable"))
			},
			expectTitle:    "Proofbuild - Poll Error",
			expectMessage:  "❌ Poll failed: bucket unreachable",
			expectTags:     "proofbuild,poll,error",
			expectPriority: "high",
		},
		{
			name:           "test",
			send:           func(s notifications.Service) error { return s.TestNotification(context.Background()) },
			expectTitle:    "Proofbuild - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "proofbuild,test",
			expectPriority: "low",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, requests := newNtfyServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			if err := tc.send(notifications.NewService(cfg.Notifications)); err != nil {
				t.Fatalf("send returned error: %v", err)
			}
			if len(*requests) != 1 {
				t.Fatalf("expected 1 request, got %d", len(*requests))
			}
			got := (*requests)[0]
			if got.title != tc.expectTitle || got.body != tc.expectMessage || got.tags != tc.expectTags || got.priority != tc.expectPriority {
				t.Fatalf("unexpected request %+v", got)
			}
		})
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	server, requests := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Ready = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(cfg.Notifications)
	_ = svc.NotifyProjectReady(context.Background(), "p1", 0)
	_ = svc.NotifyProjectFailed(context.Background(), "p1", "ingest", errors.New("x"))
	_ = svc.NotifyPollFailed(context.Background(), errors.New("x"))
	if len(*requests) != 0 {
		t.Fatalf("expected suppressed events, got %d requests", len(*requests))
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server, _ := newNtfyServer(t, http.StatusInternalServerError)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	if err := notifications.NewService(cfg.Notifications).TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
