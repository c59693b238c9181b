package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dwizi/devops-assistant/internal/config"
	"github.com/dwizi/devops-assistant/internal/heartbeat"
	"github.com/dwizi/devops-assistant/internal/orchestrator"
	"github.com/dwizi/devops-assistant/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	return config.Config{
		HTTPAddr:               "127.0.0.1:0",
		DataDir:                root,
		DBPath:                 filepath.Join(root, "devops-assistant", "audit.sqlite"),
		DefaultConcurrency:     1,
		APIToken:               "test-token",
		CORSAllowedOrigins:     "*",
		TranscriptsEnabled:     true,
		TranscriptRoot:         filepath.Join(root, "transcripts"),
		HeartbeatEnabled:       true,
		HeartbeatIntervalSec:   30,
		HeartbeatStaleSec:      120,
		LLMProvider:            "none",
		LLMTimeoutSec:          5,
		LLMMaxWords:            150,
		ChatEnabled:            true,
		ChatRateLimitPerWindow: 20,
		ChatRateLimitWindowSec: 60,
		GitHubAPI:              "http://127.0.0.1:1",
		GitHubRunLimit:         10,
		GitHubSyncSchedule:     "@every 1m",
		EscalationTimeoutSec:   5,
		MCPEnabled:             true,
	}
}

func newTestRuntime(t *testing.T, cfg config.Config) *Runtime {
	t.Helper()
	runtime, err := New(cfg, "test", testLogger())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	t.Cleanup(func() {
		_ = runtime.Close()
	})
	return runtime
}

func TestNewSeedsDefaultPipelines(t *testing.T) {
	runtime := newTestRuntime(t, testConfig(t))
	if runtime.registry.Len() != 3 {
		t.Fatalf("expected 3 default pipelines, got %d", runtime.registry.Len())
	}
	if runtime.watcher != nil {
		t.Fatal("expected no fixture watcher without a fixture path")
	}
	if runtime.syncer != nil {
		t.Fatal("expected no github syncer when sync is disabled")
	}
	if runtime.heartbeatMonitor == nil {
		t.Fatal("expected heartbeat monitor when heartbeat is enabled")
	}
}

func TestNewLoadsFixture(t *testing.T) {
	cfg := testConfig(t)
	cfg.FixturePath = filepath.Join(t.TempDir(), "pipelines.yaml")
	cfg.WatchFixture = true
	fixture := "pipelines:\n  - id: payments\n    name: Payments\n    status: failed\n    stage: Test\n    branch: main\n    commit: abc1234\n"
	if err := os.WriteFile(cfg.FixturePath, []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	runtime := newTestRuntime(t, cfg)
	item, err := runtime.registry.Get("payments")
	if err != nil {
		t.Fatalf("expected fixture pipeline, got %v", err)
	}
	if item.Name != "Payments" {
		t.Fatalf("expected Payments, got %q", item.Name)
	}
	if runtime.watcher == nil {
		t.Fatal("expected fixture watcher")
	}
}

func TestNewRejectsBrokenFixture(t *testing.T) {
	cfg := testConfig(t)
	cfg.FixturePath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg, "test", testLogger()); err == nil {
		t.Fatal("expected error for missing fixture")
	}
}

func TestNewWithChatDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChatEnabled = false
	runtime := newTestRuntime(t, cfg)

	server := httptest.NewServer(runtime.httpServer.Handler)
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/chat", "application/json", strings.NewReader(`{"message":"status?"}`))
	if err != nil {
		t.Fatalf("post chat: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestRuntimeEscalationIsDelivered(t *testing.T) {
	runtime := newTestRuntime(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = runtime.engine.Start(ctx)
	}()

	server := httptest.NewServer(runtime.httpServer.Handler)
	defer server.Close()

	req, err := http.NewRequest(http.MethodPost, server.URL+"/pipelines/action", strings.NewReader(`{"pipeline_id":"backend-api","action":"escalate"}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-token")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post action: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		items, err := runtime.store.ListEscalations(context.Background(), "backend-api", 10)
		if err != nil {
			t.Fatalf("list escalations: %v", err)
		}
		if len(items) == 1 && items[0].Status == store.EscalationStatusDelivered {
			if items[0].Channel != "log" {
				t.Fatalf("expected log channel, got %q", items[0].Channel)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected delivered escalation, got %+v", items)
		}
		time.Sleep(20 * time.Millisecond)
	}

	status, ok := runtime.heartbeat.Lookup(escalationComponent)
	if !ok || status.State != heartbeat.StateHealthy {
		t.Fatalf("expected healthy escalation heartbeat, got %+v", status)
	}
}

func TestRuntimeEscalationFailsAfterLastAttempt(t *testing.T) {
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer webhook.Close()

	cfg := testConfig(t)
	cfg.EscalationWebhookURL = webhook.URL
	cfg.EscalationMaxAttempts = 2
	runtime := newTestRuntime(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = runtime.engine.Start(ctx)
	}()

	item, err := runtime.registry.Get("backend-api")
	if err != nil {
		t.Fatalf("get pipeline: %v", err)
	}
	record, err := runtime.escalations.Escalate(ctx, item, "escalate")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		stored, err := runtime.store.LookupEscalation(context.Background(), record.ID)
		if err != nil {
			t.Fatalf("lookup escalation: %v", err)
		}
		if stored.Status == store.EscalationStatusFailed {
			if stored.Attempts != 2 || !strings.Contains(stored.Error, "502") {
				t.Fatalf("expected two recorded attempts, got %+v", stored)
			}
			break
		}
		if stored.Status == store.EscalationStatusDelivered {
			t.Fatalf("expected delivery to fail, got %+v", stored)
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected failed escalation, got %+v", stored)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestEscalationObserverClosesFailedEscalation(t *testing.T) {
	closer := &recordingCloser{}
	observer := newEscalationObserver(nil, closer, testLogger())

	observer.OnTaskFailed(orchestrator.Task{ID: "esc_9", Kind: orchestrator.TaskKindEscalation, Attempt: 3}, 1, errors.New("webhook down"))
	observer.OnTaskFailed(orchestrator.Task{ID: "task_1", Kind: orchestrator.TaskKindGeneral}, 1, errors.New("boom"))

	if len(closer.ids) != 1 || closer.ids[0] != "esc_9" {
		t.Fatalf("expected only the escalation to be closed, got %v", closer.ids)
	}
}

type recordingCloser struct {
	ids []string
}

func (c *recordingCloser) MarkFailed(ctx context.Context, id string, cause error) {
	c.ids = append(c.ids, id)
}

func TestRunMonitoredDegradesOnFailure(t *testing.T) {
	registry := heartbeat.NewRegistry()
	err := runMonitored(context.Background(), registry, "worker", 0, func(context.Context) error {
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error from failed component")
	}
	status, ok := registry.Lookup("worker")
	if !ok {
		t.Fatal("expected worker status")
	}
	if status.State != heartbeat.StateDegraded {
		t.Fatalf("expected degraded state, got %s", status.State)
	}
}

func TestRunMonitoredStopsCleanly(t *testing.T) {
	registry := heartbeat.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runMonitored(ctx, registry, "worker", time.Millisecond, func(runCtx context.Context) error {
		<-runCtx.Done()
		return runCtx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	status, _ := registry.Lookup("worker")
	if status.State != heartbeat.StateStopped {
		t.Fatalf("expected stopped state, got %s", status.State)
	}
}

func TestEscalationObserverDegradesOnFailure(t *testing.T) {
	registry := heartbeat.NewRegistry()
	observer := newEscalationObserver(registry, nil, testLogger())
	task := orchestrator.Task{ID: "esc_1", Kind: orchestrator.TaskKindEscalation}

	observer.OnTaskStarted(task, 1)
	observer.OnTaskFailed(task, 1, errors.New("webhook down"))

	status, _ := registry.Lookup(escalationComponent)
	if status.State != heartbeat.StateDegraded {
		t.Fatalf("expected degraded state, got %s", status.State)
	}
	if status.Error != "webhook down" {
		t.Fatalf("expected error to be recorded, got %q", status.Error)
	}
}

func TestEscalationObserverStaysHealthyWhileRetrying(t *testing.T) {
	registry := heartbeat.NewRegistry()
	observer := newEscalationObserver(registry, nil, testLogger())
	task := orchestrator.Task{ID: "esc_3", Kind: orchestrator.TaskKindEscalation, Attempt: 1}

	observer.OnTaskRetry(task, 1, errors.New("webhook returned 502"), 5*time.Second)

	status, _ := registry.Lookup(escalationComponent)
	if status.State != heartbeat.StateHealthy {
		t.Fatalf("expected healthy state during retry, got %s", status.State)
	}
	if !strings.Contains(status.Message, "attempt 1") {
		t.Fatalf("expected retry message, got %q", status.Message)
	}
}

func TestObserverToleratesDisabledHeartbeat(t *testing.T) {
	observer := newEscalationObserver(nil, nil, testLogger())
	observer.OnTaskCompleted(orchestrator.Task{ID: "esc_2"}, 1, orchestrator.TaskResult{Channel: "log"})
}
