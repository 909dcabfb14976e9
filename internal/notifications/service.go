package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelforge/internal/config"
)

const userAgent = "reelforge/0.1.0"

// Service defines the notification surface exposed to the pipeline and CLI.
type Service interface {
	NotifyRunCompleted(ctx context.Context, runID, theme, videoRef string) error
	NotifyRunSubmitted(ctx context.Context, runID, theme, jobID string) error
	NotifyRunFailed(ctx context.Context, runID, theme, stage string, err error) error
	NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error
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
		runCompleted: cfg.Notifications.RunCompleted,
		runFailed:    cfg.Notifications.RunFailed,
		titler:       cases.Title(language.Und),
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
	runCompleted bool
	runFailed    bool
	titler       cases.Caser
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, runID, theme, videoRef string) error {
	if !n.runCompleted {
		return nil
	}
	message := fmt.Sprintf("🎬 Short ready: %s", n.displayTheme(theme))
	if videoRef = strings.TrimSpace(videoRef); videoRef != "" {
		message = fmt.Sprintf("%s\nVideo: %s", message, videoRef)
	}
	data := payload{
		title:    "reelforge - Run Complete",
		message:  withRunID(message, runID),
		tags:     []string{"reelforge", "run", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunSubmitted(ctx context.Context, runID, theme, jobID string) error {
	if !n.runCompleted {
		return nil
	}
	message := fmt.Sprintf("⏳ Render submitted: %s", n.displayTheme(theme))
	if jobID = strings.TrimSpace(jobID); jobID != "" {
		message = fmt.Sprintf("%s\nJob: %s", message, jobID)
	}
	data := payload{
		title:   "reelforge - Render Submitted",
		message: withRunID(message, runID),
		tags:    []string{"reelforge", "render", "submitted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, runID, theme, stage string, err error) error {
	if !n.runFailed {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Run failed")
	if stage = strings.TrimSpace(stage); stage != "" {
		builder.WriteString(" at ")
		builder.WriteString(stage)
	}
	builder.WriteString(": ")
	builder.WriteString(n.displayTheme(theme))
	builder.WriteString("\n")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown error")
	}

	data := payload{
		title:    "reelforge - Run Failed",
		message:  withRunID(builder.String(), runID),
		tags:     []string{"reelforge", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "reelforge - Batch Complete"
		message = fmt.Sprintf("Batch complete: %d runs in %s", succeeded, durationText)
	} else {
		title = "reelforge - Batch Complete (with errors)"
		message = fmt.Sprintf("Batch complete: %d succeeded, %d failed in %s", succeeded, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"reelforge", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "reelforge - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"reelforge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) displayTheme(theme string) string {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return "Untitled"
	}
	return n.titler.String(theme)
}

func withRunID(message, runID string) string {
	if runID = strings.TrimSpace(runID); runID == "" {
		return message
	}
	return fmt.Sprintf("%s\nRun: %s", message, runID)
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

func (noopService) NotifyRunCompleted(context.Context, string, string, string) error     { return nil }
func (noopService) NotifyRunSubmitted(context.Context, string, string, string) error     { return nil }
func (noopService) NotifyRunFailed(context.Context, string, string, string, error) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error  { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }

// NewNoop returns a Service that drops every notification.
func NewNoop() Service {
	return noopService{}
}
