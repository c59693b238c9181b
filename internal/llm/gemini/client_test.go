package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/dwizi/devops-assistant/internal/llm"
)

func TestReplyWithoutKey(t *testing.T) {
	client := New(Config{}, nil)
	if _, err := client.Reply(context.Background(), llm.MessageInput{Text: "hi"}); !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	client := New(Config{APIKey: "key"}, nil)
	if client.cfg.Model != "gemini-1.5-flash" {
		t.Fatalf("unexpected default model %q", client.cfg.Model)
	}
	if client.cfg.Timeout <= 0 {
		t.Fatal("expected default timeout")
	}
}
