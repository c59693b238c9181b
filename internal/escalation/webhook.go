package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Notification is the JSON body posted to the escalation webhook.
type Notification struct {
	EscalationID string `json:"escalation_id"`
	PipelineID   string `json:"pipeline_id"`
	PipelineName string `json:"pipeline_name"`
	Status       string `json:"status"`
	Stage        string `json:"stage"`
	Branch       string `json:"branch"`
	Commit       string `json:"commit"`
	Error        string `json:"error,omitempty"`
	Message      string `json:"message"`
	Text         string `json:"text"`
	Timestamp    string `json:"timestamp"`
}

type Notifier interface {
	Channel() string
	Notify(ctx context.Context, notification Notification) error
}

type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebhookNotifier{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) Channel() string {
	return "webhook"
}

func (n *WebhookNotifier) Notify(ctx context.Context, notification Notification) error {
	if n.url == "" {
		return fmt.Errorf("escalation webhook requires a url")
	}
	lower := strings.ToLower(n.url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return fmt.Errorf("unsupported webhook url scheme")
	}
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode escalation notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	responseBody, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(responseBody)))
	}
	return nil
}

// LogNotifier records escalations in the service log when no webhook is set.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Channel() string {
	return "log"
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	n.logger.Warn("pipeline escalated",
		"escalation_id", notification.EscalationID,
		"pipeline_id", notification.PipelineID,
		"pipeline_name", notification.PipelineName,
		"status", notification.Status,
		"error", notification.Error,
	)
	return nil
}
