package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"seoforge/internal/config"
)

const userAgent = "seoforge/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyArticleCompleted(ctx context.Context, keyword, title string, words int, duration time.Duration) error
	NotifyBatchStarted(ctx context.Context, projectID string, total int) error
	NotifyBatchCompleted(ctx context.Context, projectID string, completed, failed int, cancelled bool, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
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
}

func (n *ntfyService) NotifyArticleCompleted(ctx context.Context, keyword, title string, words int, duration time.Duration) error {
	keyword = strings.TrimSpace(keyword)
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Article ready for %q", keyword)
	if title != "" {
		message = fmt.Sprintf("%s\nTitle: %s", message, title)
	}
	message = fmt.Sprintf("%s\n%d words in %s", message, words, formatDuration(duration))
	return n.send(ctx, payload{
		title:   "seoforge - Article Ready",
		message: message,
		tags:    []string{"seoforge", "article", "completed"},
	})
}

func (n *ntfyService) NotifyBatchStarted(ctx context.Context, projectID string, total int) error {
	return n.send(ctx, payload{
		title:   "seoforge - Batch Started",
		message: fmt.Sprintf("Generating %d pages for project %s", total, strings.TrimSpace(projectID)),
		tags:    []string{"seoforge", "batch", "started"},
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, projectID string, completed, failed int, cancelled bool, duration time.Duration) error {
	projectID = strings.TrimSpace(projectID)
	durationText := formatDuration(duration)

	var title, message string
	switch {
	case cancelled:
		title = "seoforge - Batch Cancelled"
		message = fmt.Sprintf("Batch for %s cancelled: %d completed, %d failed in %s", projectID, completed, failed, durationText)
	case failed == 0:
		title = "seoforge - Batch Complete"
		message = fmt.Sprintf("Batch for %s complete: %d pages generated in %s", projectID, completed, durationText)
	default:
		title = "seoforge - Batch Complete (with errors)"
		message = fmt.Sprintf("Batch for %s complete: %d succeeded, %d failed in %s", projectID, completed, failed, durationText)
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"seoforge", "batch", "completed"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
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

	return n.send(ctx, payload{
		title:    "seoforge - Error",
		message:  builder.String(),
		tags:     []string{"seoforge", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "seoforge - Test",
		message:  "Notification system test",
		tags:     []string{"seoforge", "test"},
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

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) NotifyArticleCompleted(context.Context, string, string, int, time.Duration) error {
	return nil
}
func (noopService) NotifyBatchStarted(context.Context, string, int) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, string, int, int, bool, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
