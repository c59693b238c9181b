package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dwizi/devops-assistant/internal/orchestrator"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	sqlStore, err := store.New(filepath.Join(t.TempDir(), "escalation.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate store: %v", err)
	}
	return sqlStore
}

type fakeQueue struct {
	tasks []orchestrator.Task
	err   error
}

func (q *fakeQueue) Enqueue(task orchestrator.Task) (orchestrator.Task, error) {
	if q.err != nil {
		return orchestrator.Task{}, q.err
	}
	q.tasks = append(q.tasks, task)
	return task, nil
}

func TestEscalateQueuesTask(t *testing.T) {
	sqlStore := openTestStore(t)
	queue := &fakeQueue{}
	registry := pipeline.NewRegistry(pipeline.DefaultPipelines()...)
	service := NewService(sqlStore, queue, registry, nil, testLogger())

	item, _ := registry.Get("backend-api")
	record, err := service.Escalate(context.Background(), item, "Issue escalated to DevOps team for Backend API")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if record.Status != store.EscalationStatusQueued || !strings.HasPrefix(record.ID, "esc_") {
		t.Fatalf("unexpected escalation record: %+v", record)
	}
	if len(queue.tasks) != 1 || queue.tasks[0].Kind != orchestrator.TaskKindEscalation || queue.tasks[0].ID != record.ID {
		t.Fatalf("unexpected queued tasks: %+v", queue.tasks)
	}
}

func TestEscalateQueueFullMarksFailure(t *testing.T) {
	sqlStore := openTestStore(t)
	queue := &fakeQueue{err: orchestrator.ErrQueueFull}
	service := NewService(sqlStore, queue, nil, nil, testLogger())

	record, err := service.Escalate(context.Background(), pipeline.Pipeline{ID: "backend-api", Name: "Backend API"}, "help")
	if !errors.Is(err, orchestrator.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	stored, lookupErr := sqlStore.LookupEscalation(context.Background(), record.ID)
	if lookupErr != nil {
		t.Fatalf("lookup escalation: %v", lookupErr)
	}
	if stored.Status != store.EscalationStatusFailed {
		t.Fatalf("expected failed escalation, got %+v", stored)
	}
}

func TestExecuteDeliversWebhook(t *testing.T) {
	received := make(chan Notification, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var notification Notification
		if err := json.NewDecoder(req.Body).Decode(&notification); err != nil {
			t.Errorf("decode notification: %v", err)
		}
		received <- notification
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sqlStore := openTestStore(t)
	registry := pipeline.NewRegistry(pipeline.DefaultPipelines()...)
	service := NewService(sqlStore, nil, registry, NewWebhookNotifier(server.URL, time.Second), testLogger())

	item, _ := registry.Get("backend-api")
	record, err := service.Escalate(context.Background(), item, "escalate")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	result, err := service.Execute(context.Background(), orchestrator.Task{ID: record.ID, Kind: orchestrator.TaskKindEscalation, PipelineID: "backend-api"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Channel != "webhook" {
		t.Fatalf("unexpected channel %q", result.Channel)
	}
	notification := <-received
	if notification.PipelineName != "Backend API" || notification.Error != "Test timeout after 300s - Database connection failed" {
		t.Fatalf("unexpected notification: %+v", notification)
	}
	if !strings.Contains(notification.Text, "Backend API needs DevOps attention") {
		t.Fatalf("unexpected notification text %q", notification.Text)
	}
	stored, _ := sqlStore.LookupEscalation(context.Background(), record.ID)
	if stored.Status != store.EscalationStatusDelivered || stored.Channel != "webhook" {
		t.Fatalf("expected delivered escalation, got %+v", stored)
	}
}

func TestExecuteWebhookFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	sqlStore := openTestStore(t)
	service := NewService(sqlStore, nil, nil, NewWebhookNotifier(server.URL, time.Second), testLogger())
	record, _ := service.Escalate(context.Background(), pipeline.Pipeline{ID: "backend-api", Name: "Backend API"}, "escalate")

	task := orchestrator.Task{ID: record.ID, Kind: orchestrator.TaskKindEscalation, PipelineID: "backend-api"}
	for attempt := 1; attempt <= 2; attempt++ {
		_, err := service.Execute(context.Background(), task)
		if err == nil {
			t.Fatal("expected delivery error")
		}
		stored, _ := sqlStore.LookupEscalation(context.Background(), record.ID)
		if stored.Status != store.EscalationStatusQueued || stored.Attempts != attempt || !strings.Contains(stored.Error, "status=502") {
			t.Fatalf("expected queued escalation after attempt %d, got %+v", attempt, stored)
		}
	}

	service.MarkFailed(context.Background(), record.ID, nil)
	stored, _ := sqlStore.LookupEscalation(context.Background(), record.ID)
	if stored.Status != store.EscalationStatusFailed || stored.Attempts != 2 || !strings.Contains(stored.Error, "status=502") {
		t.Fatalf("expected failed escalation, got %+v", stored)
	}
}

func TestExecuteRejectsOtherKinds(t *testing.T) {
	service := NewService(nil, nil, nil, nil, testLogger())
	if _, err := service.Execute(context.Background(), orchestrator.Task{Kind: orchestrator.TaskKindGeneral}); !errors.Is(err, ErrUnsupportedTask) {
		t.Fatalf("expected ErrUnsupportedTask, got %v", err)
	}
}

func TestEscalationThroughEngine(t *testing.T) {
	sqlStore := openTestStore(t)
	engine := orchestrator.New(1, testLogger())
	service := NewService(sqlStore, engine, nil, nil, testLogger())
	engine.SetExecutor(service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = engine.Start(ctx)
	}()

	record, err := service.Escalate(ctx, pipeline.Pipeline{ID: "backend-api", Name: "Backend API"}, "escalate")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stored, err := sqlStore.LookupEscalation(context.Background(), record.ID)
		if err == nil && stored.Status == store.EscalationStatusDelivered {
			if stored.Channel != "log" {
				t.Fatalf("expected log channel, got %q", stored.Channel)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for escalation delivery")
}
