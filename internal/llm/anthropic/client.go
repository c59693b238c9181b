// Package anthropic answers chat messages through the Anthropic messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/devops-assistant/internal/llm"
)

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 1024
)

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	SystemPrompt string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    string `json:"system,omitempty"`
	Messages  []turn `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *Client) Reply(ctx context.Context, input llm.MessageInput) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing anthropic API key", llm.ErrUnavailable)
	}
	question := strings.TrimSpace(input.Text)
	if question == "" {
		return "", nil
	}

	request := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: llm.TokenBudget(input.MaxWords, defaultMaxTokens),
		System:    llm.SystemPrompt(c.cfg.SystemPrompt, input.SystemPrompt),
		Messages:  []turn{{Role: "user", Content: question}},
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": apiVersion,
	}

	var response messagesResponse
	if err := llm.PostJSON(ctx, c.httpClient, "anthropic", c.cfg.BaseURL+"/messages", headers, request, &response); err != nil {
		var statusErr *llm.StatusError
		if errors.As(err, &statusErr) {
			c.logger.Error("messages request rejected", "model", c.cfg.Model, "route", input.Route, "status", statusErr.Status, "body", statusErr.Body)
		}
		return "", err
	}

	var parts []string
	for _, block := range response.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, strings.TrimSpace(block.Text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("anthropic response had no text (stop reason %q)", response.StopReason)
	}
	return strings.Join(parts, "\n\n"), nil
}
