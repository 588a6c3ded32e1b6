package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipforge/internal/config"
)

const userAgent = "Clipforge-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyJobComplete(ctx context.Context, jobID, userID, downloadURL string) error
	NotifyJobFailed(ctx context.Context, jobID, userID, reason string) error
	NotifyGenerationComplete(ctx context.Context, jobID, userID string, keywords []string) error
	TestNotification(ctx context.Context) error
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
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		sendComplete: cfg.Notifications.JobComplete,
		sendFailed:   cfg.Notifications.JobFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	sendComplete bool
	sendFailed   bool
}

func (n *ntfyService) NotifyJobComplete(ctx context.Context, jobID, userID, downloadURL string) error {
	if !n.sendComplete {
		return nil
	}
	message := fmt.Sprintf("Clip ready for %s (job %s)", userID, jobID)
	if strings.TrimSpace(downloadURL) != "" {
		message = fmt.Sprintf("%s\n%s", message, downloadURL)
	}
	data := payload{
		title:   "Clipforge - Job Complete",
		message: message,
		tags:    []string{"clipforge", "job", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobID, userID, reason string) error {
	if !n.sendFailed {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	data := payload{
		title:    "Clipforge - Job Failed",
		message:  fmt.Sprintf("Job %s for %s failed: %s", jobID, userID, reason),
		tags:     []string{"clipforge", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGenerationComplete(ctx context.Context, jobID, userID string, keywords []string) error {
	if !n.sendComplete {
		return nil
	}
	message := fmt.Sprintf("Generated video for %s (job %s)", userID, jobID)
	if len(keywords) > 0 {
		message = fmt.Sprintf("%s\nKeywords: %s", message, strings.Join(keywords, ", "))
	}
	data := payload{
		title:   "Clipforge - Generation Complete",
		message: message,
		tags:    []string{"clipforge", "generate", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Clipforge - Test",
		message: "Notifications are working",
		tags:    []string{"clipforge", "test"},
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

func (noopService) NotifyJobComplete(context.Context, string, string, string) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string, string) error   { return nil }
func (noopService) NotifyGenerationComplete(context.Context, string, string, []string) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
