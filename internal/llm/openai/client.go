// Package openai talks to any OpenAI compatible chat completions endpoint,
// including local ollama and llama.cpp servers.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dwizi/devops-assistant/internal/llm"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
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
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		endpoint:   cfg.BaseURL + "/chat/completions",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func (c *Client) Reply(ctx context.Context, input llm.MessageInput) (string, error) {
	if c.needsKey() && strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing API key for %s", llm.ErrUnavailable, c.cfg.BaseURL)
	}
	question := strings.TrimSpace(input.Text)
	if question == "" {
		return "", nil
	}

	request := completionRequest{
		Model:     c.cfg.Model,
		MaxTokens: llm.TokenBudget(input.MaxWords, 0),
	}
	if system := llm.SystemPrompt(c.cfg.SystemPrompt, input.SystemPrompt); system != "" {
		request.Messages = append(request.Messages, message{Role: "system", Content: system})
	}
	request.Messages = append(request.Messages, message{Role: "user", Content: question})

	headers := map[string]string{}
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		headers["Authorization"] = "Bearer " + key
	}

	var response completionResponse
	if err := llm.PostJSON(ctx, c.httpClient, "openai", c.endpoint, headers, request, &response); err != nil {
		var statusErr *llm.StatusError
		if errors.As(err, &statusErr) {
			c.logger.Error("chat completion rejected", "model", c.cfg.Model, "route", input.Route, "status", statusErr.Status, "body", statusErr.Body)
		}
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("openai response returned no choices")
	}
	return stripReasoning(response.Choices[0].Message.Content), nil
}

// needsKey is false for self-hosted endpoints.
func (c *Client) needsKey() bool {
	lower := strings.ToLower(c.cfg.BaseURL)
	for _, local := range []string{"localhost", "127.0.0.1", "ollama"} {
		if strings.Contains(lower, local) {
			return false
		}
	}
	return true
}

var reasoningPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<think\b[^>]*>.*?</think>`),
	regexp.MustCompile("(?is)```think\\s*.*?```"),
	regexp.MustCompile(`(?i)</?think>`),
}

// stripReasoning drops the chain-of-thought blocks some local models emit.
func stripReasoning(reply string) string {
	for _, pattern := range reasoningPatterns {
		reply = pattern.ReplaceAllString(reply, "")
	}
	return strings.TrimSpace(reply)
}
