package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"echopress/internal/config"
)

const userAgent = "EchoPress-Go/0.1.0"

// Event enumerates the pipeline milestones that may produce a push notification.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventRunFailed    Event = "run_failed"
	EventTest         Event = "test"
)

// Payload carries event-specific values. Keys are documented per event in format.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.RunCompleted,
		failed:    cfg.Notifications.RunFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n == nil {
		return nil
	}
	switch event {
	case EventRunCompleted:
		if !n.completed {
			return nil
		}
	case EventRunFailed:
		if !n.failed {
			return nil
		}
	case EventRunStarted:
		// Start events feed the observer stream only; they are too chatty for push.
		return nil
	}
	msg, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// format renders the ntfy message for an event.
//
//	run_completed: title, draft_id, citations (int), duration (time.Duration)
//	run_failed:    title, kind, error
func format(event Event, data Payload) (payload, bool) {
	switch event {
	case EventRunCompleted:
		title := stringValue(data, "title")
		message := fmt.Sprintf("📝 Draft ready: %s", title)
		if id := stringValue(data, "draft_id"); id != "" {
			message = fmt.Sprintf("%s\nDraft: %s", message, id)
		}
		if citations, ok := data["citations"].(int); ok {
			message = fmt.Sprintf("%s\nCitations: %d", message, citations)
		}
		if duration, ok := data["duration"].(time.Duration); ok && duration > 0 {
			message = fmt.Sprintf("%s\nTook: %s", message, duration.Round(time.Second))
		}
		return payload{
			title:   "EchoPress - Draft Ready",
			message: message,
			tags:    []string{"echopress", "draft", "completed"},
		}, true
	case EventRunFailed:
		var builder strings.Builder
		builder.WriteString("❌ Run failed")
		if title := stringValue(data, "title"); title != "" {
			builder.WriteString(" for ")
			builder.WriteString(title)
		}
		if kind := stringValue(data, "kind"); kind != "" {
			builder.WriteString(" (")
			builder.WriteString(kind)
			builder.WriteString(")")
		}
		builder.WriteString(": ")
		if msg := stringValue(data, "error"); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "EchoPress - Error",
			message:  builder.String(),
			tags:     []string{"echopress", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "EchoPress - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"echopress", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func stringValue(data Payload, key string) string {
	if data == nil {
		return ""
	}
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n.client == nil {
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
