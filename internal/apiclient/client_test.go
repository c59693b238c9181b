package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dwizi/devops-assistant/internal/config"
)

func TestClientActionSendsBearerToken(t *testing.T) {
	t.Parallel()

	type requestPayload struct {
		PipelineID string `json:"pipeline_id"`
		Action     string `json:"action"`
	}

	var got requestPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/pipelines/action" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("unexpected authorization header: %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"Retry initiated for Backend API","pipeline_id":"backend-api","action":"retry","timestamp":"2026-10-19T10:00:00Z"}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, token: "secret", http: server.Client()}
	result, err := client.Action(context.Background(), " backend-api ", " retry ")
	if err != nil {
		t.Fatalf("action: %v", err)
	}
	if got.PipelineID != "backend-api" || got.Action != "retry" {
		t.Fatalf("unexpected request payload: %+v", got)
	}
	if !result.Success || result.PipelineID != "backend-api" {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Pipeline not found"}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	_, err := client.GetPipeline(context.Background(), "missing")
	if err == nil || err.Error() != "Pipeline not found" {
		t.Fatalf("expected Pipeline not found error, got %v", err)
	}
}

func TestClientChatRateLimited(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"handled":true,"reply":"slow down","route":"simple","reason":"rate_limited","type":"rate_limited","retry_after_sec":12}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	output, err := client.Chat(context.Background(), ChatRequest{Message: "status?"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if output.Reply != "slow down" || output.RetryAfterSec != 12 {
		t.Fatalf("expected limiter reply with retry hint, got %+v", output)
	}
}

func TestClientChatRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"handled":true,"reply":"message too long","route":"simple","reason":"message_too_long","type":"rejected"}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	output, err := client.Chat(context.Background(), ChatRequest{Message: "status?"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if output.Type != "rejected" || output.Reply != "message too long" || output.RetryAfterSec != 0 {
		t.Fatalf("expected refusal without retry hint, got %+v", output)
	}
}

func TestClientChatRequiresMessage(t *testing.T) {
	t.Parallel()

	client := &Client{baseURL: "http://127.0.0.1:1", http: http.DefaultClient}
	if _, err := client.Chat(context.Background(), ChatRequest{Message: "  "}); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestClientListEscalationsUnwrapsItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pipeline_id") != "backend-api" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"esc_1","pipeline_id":"backend-api","status":"delivered","attempts":1}],"count":1}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	items, err := client.ListEscalations(context.Background(), "backend-api", 5)
	if err != nil {
		t.Fatalf("list escalations: %v", err)
	}
	if len(items) != 1 || items[0].ID != "esc_1" {
		t.Fatalf("unexpected escalations: %+v", items)
	}
}

func TestClientWithTimeoutClonesClient(t *testing.T) {
	t.Parallel()

	base := &Client{
		baseURL: "https://example.com",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	updated := base.WithTimeout(3 * time.Second)
	if updated == base {
		t.Fatal("expected timeout update to clone client")
	}
	if updated.http.Timeout != 3*time.Second {
		t.Fatalf("expected timeout 3s, got %s", updated.http.Timeout)
	}
	if base.http.Timeout != 15*time.Second {
		t.Fatalf("expected original timeout unchanged, got %s", base.http.Timeout)
	}
}

func TestNewTrimsBaseURL(t *testing.T) {
	t.Parallel()

	client := New(config.Config{APIURL: "http://localhost:8000/", APIToken: " token ", LLMTimeoutSec: 30})
	if client.BaseURL() != "http://localhost:8000" {
		t.Fatalf("expected trimmed base url, got %q", client.BaseURL())
	}
	if client.token != "token" {
		t.Fatalf("expected trimmed token, got %q", client.token)
	}
	if client.http.Timeout != time.Minute {
		t.Fatalf("expected 1m timeout, got %s", client.http.Timeout)
	}
}

func TestClientAPIErrorCarriesStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("expected bearer token on reads, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, token: "secret", http: server.Client()}
	_, err := client.ListPipelines(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
	if apiErr.Message != "503 Service Unavailable" {
		t.Fatalf("expected status text fallback, got %q", apiErr.Message)
	}
}

func TestClientGetPipelineRequiresID(t *testing.T) {
	t.Parallel()

	client := &Client{baseURL: "http://127.0.0.1:1", http: http.DefaultClient}
	if _, err := client.PipelineLogs(context.Background(), " "); !errors.Is(err, errPipelineID) {
		t.Fatalf("expected pipeline id error, got %v", err)
	}
}
