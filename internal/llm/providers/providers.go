// Package providers builds the configured llm.Responder.
package providers

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/devops-assistant/internal/llm"
	"github.com/dwizi/devops-assistant/internal/llm/anthropic"
	"github.com/dwizi/devops-assistant/internal/llm/gemini"
	"github.com/dwizi/devops-assistant/internal/llm/openai"
)

var ErrUnknownProvider = errors.New("unknown llm provider")

const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Config struct {
	Provider     string
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	SystemPrompt string
}

// New returns nil with no error for the "none" provider.
func New(cfg Config, logger *slog.Logger) (llm.Responder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			Timeout:      cfg.Timeout,
			SystemPrompt: cfg.SystemPrompt,
		}, logger.With("provider", provider)), nil
	case ProviderAnthropic:
		return anthropic.New(anthropic.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			Timeout:      cfg.Timeout,
			SystemPrompt: cfg.SystemPrompt,
		}, logger.With("provider", provider)), nil
	case ProviderGemini:
		return gemini.New(gemini.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			Timeout:      cfg.Timeout,
			SystemPrompt: cfg.SystemPrompt,
		}, logger.With("provider", provider)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}
