package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSystemPromptSkipsBlankParts(t *testing.T) {
	got := SystemPrompt("  You are a DevOps AI Assistant. ", "", "  ", "Current Pipeline Status:")
	if got != "You are a DevOps AI Assistant.\n\nCurrent Pipeline Status:" {
		t.Fatalf("unexpected prompt %q", got)
	}
	if SystemPrompt("", " ") != "" {
		t.Fatal("expected empty prompt")
	}
}

func TestTokenBudget(t *testing.T) {
	if got := TokenBudget(150, 0); got != 300 {
		t.Fatalf("expected 300, got %d", got)
	}
	if got := TokenBudget(0, 1024); got != 1024 {
		t.Fatalf("expected fallback 1024, got %d", got)
	}
}

func TestPostJSONDecodesAndSetsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected json content type, got %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Test") != "yes" {
			t.Errorf("expected custom header, got %q", r.Header.Get("X-Test"))
		}
		_, _ = w.Write([]byte(`{"answer":"retry"}`))
	}))
	defer server.Close()

	var out struct {
		Answer string `json:"answer"`
	}
	err := PostJSON(context.Background(), server.Client(), "test", server.URL, map[string]string{"X-Test": "yes"}, map[string]string{"q": "status"}, &out)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if out.Answer != "retry" {
		t.Fatalf("expected retry, got %q", out.Answer)
	}
}

func TestPostJSONReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var out map[string]any
	err := PostJSON(context.Background(), server.Client(), "test", server.URL, nil, struct{}{}, &out)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusServiceUnavailable || statusErr.Body != "overloaded" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
}
