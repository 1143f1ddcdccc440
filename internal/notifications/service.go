package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sentra/internal/config"
)

const userAgent = "Sentra/0.1.0"

// Service defines the notification surface exposed to the screening
// coordinator and the Discord glue.
type Service interface {
	NotifySpamDetected(ctx context.Context, entryID string, distance int, poster, channel string) error
	NotifyFingerprintAdded(ctx context.Context, entryID string, total int) error
	NotifyFingerprintRemoved(ctx context.Context, entryID string, total int) error
	NotifyRegistryReloaded(ctx context.Context, total int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when
// configured. When no ntfy topic is configured, a noop implementation
// is returned.
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
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		detections: cfg.Notifications.Detections,
		registry:   cfg.Notifications.Registry,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	detections bool
	registry   bool
	errors     bool
}

func (n *ntfyService) NotifySpamDetected(ctx context.Context, entryID string, distance int, poster, channel string) error {
	if !n.detections {
		return nil
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "Removed spam matching %s (distance %d)", strings.TrimSpace(entryID), distance)
	if poster = strings.TrimSpace(poster); poster != "" {
		fmt.Fprintf(&builder, "\nPosted by: %s", poster)
	}
	if channel = strings.TrimSpace(channel); channel != "" {
		fmt.Fprintf(&builder, "\nChannel: #%s", channel)
	}
	data := payload{
		title:    "Sentra - Spam Removed",
		message:  builder.String(),
		tags:     []string{"sentra", "spam", "detected"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFingerprintAdded(ctx context.Context, entryID string, total int) error {
	if !n.registry {
		return nil
	}
	data := payload{
		title:   "Sentra - Fingerprint Added",
		message: fmt.Sprintf("Registered %s (%d total)", strings.TrimSpace(entryID), total),
		tags:    []string{"sentra", "registry", "added"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFingerprintRemoved(ctx context.Context, entryID string, total int) error {
	if !n.registry {
		return nil
	}
	data := payload{
		title:   "Sentra - Fingerprint Removed",
		message: fmt.Sprintf("Unregistered %s (%d total)", strings.TrimSpace(entryID), total),
		tags:    []string{"sentra", "registry", "removed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRegistryReloaded(ctx context.Context, total int) error {
	if !n.registry {
		return nil
	}
	data := payload{
		title:   "Sentra - Registry Reloaded",
		message: fmt.Sprintf("Rescanned spam directory: %d fingerprints loaded", total),
		tags:    []string{"sentra", "registry", "reloaded"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Sentra - Error",
		message:  builder.String(),
		tags:     []string{"sentra", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Sentra - Test",
		message:  "Notification system test",
		tags:     []string{"sentra", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifySpamDetected(context.Context, string, int, string, string) error { return nil }
func (noopService) NotifyFingerprintAdded(context.Context, string, int) error             { return nil }
func (noopService) NotifyFingerprintRemoved(context.Context, string, int) error           { return nil }
func (noopService) NotifyRegistryReloaded(context.Context, int) error                     { return nil }
func (noopService) NotifyError(context.Context, error, string) error                      { return nil }
func (noopService) TestNotification(context.Context) error                                { return nil }
