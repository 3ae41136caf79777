package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"proofbuild/internal/config"
)

const userAgent = "proofbuild/0.1.0"

// Service defines the notification surface used by the pipeline.
type Service interface {
	NotifyProjectReady(ctx context.Context, projectID string, duration time.Duration) error
	NotifyProjectFailed(ctx context.Context, projectID, stage string, err error) error
	NotifyPollFailed(ctx context.Context, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		ready:    cfg.Ready,
		errors:   cfg.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	ready    bool
	errors   bool
}

func (n *ntfyService) NotifyProjectReady(ctx context.Context, projectID string, duration time.Duration) error {
	if !n.ready {
		return nil
	}
	message := fmt.Sprintf("✅ Ready for playback: %s", strings.TrimSpace(projectID))
	if duration > 0 {
		message = fmt.Sprintf("%s (%s)", message, duration.Round(time.Second))
	}
	return n.send(ctx, payload{
		title:   "Proofbuild - Ready",
		message: message,
		tags:    []string{"proofbuild", "project", "ready"},
	})
}

func (n *ntfyService) NotifyProjectFailed(ctx context.Context, projectID, stage string, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ ")
	builder.WriteString(strings.TrimSpace(projectID))
	if stage = strings.TrimSpace(stage); stage != "" {
		builder.WriteString(" failed after ")
		builder.WriteString(stage)
	} else {
		builder.WriteString(" failed")
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Proofbuild - Error",
		message:  builder.String(),
		tags:     []string{"proofbuild", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyPollFailed(ctx context.Context, err error) error {
	if !n.errors {
		return nil
	}
	message := "❌ Poll failed: unknown"
	if err != nil {
		message = "❌ Poll failed: " + strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "Proofbuild - Poll Error",
		message:  message,
		tags:     []string{"proofbuild", "poll", "error"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Proofbuild - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"proofbuild", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func (noopService) NotifyProjectReady(context.Context, string, time.Duration) error  { return nil }
func (noopService) NotifyProjectFailed(context.Context, string, string, error) error { return nil }
func (noopService) NotifyPollFailed(context.Context, error) error                    { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }

// Noop returns a Service that discards every event.
func Noop() Service { return noopService{} }
