package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedExecutor fails the first failures calls, then succeeds.
type scriptedExecutor struct {
	mu       sync.Mutex
	failures int
	calls    []Task
}

func (e *scriptedExecutor) Execute(ctx context.Context, task Task) (TaskResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, task)
	if len(e.calls) <= e.failures {
		return TaskResult{}, errors.New("webhook returned 502")
	}
	return TaskResult{Summary: "escalation delivered for " + task.PipelineID, Channel: "webhook"}, nil
}

type event struct {
	name    string
	attempt int
	err     error
	delay   time.Duration
	result  TaskResult
}

// recorder collects observer callbacks and signals on terminal ones.
type recorder struct {
	mu       sync.Mutex
	events   []event
	terminal chan event
}

func newRecorder() *recorder {
	return &recorder{terminal: make(chan event, 4)}
}

func (r *recorder) add(e event, terminal bool) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if terminal {
		r.terminal <- e
	}
}

func (r *recorder) OnTaskQueued(task Task) {
	r.add(event{name: "queued", attempt: task.Attempt}, false)
}

func (r *recorder) OnTaskStarted(task Task, workerID int) {
	r.add(event{name: "started", attempt: task.Attempt}, false)
}

func (r *recorder) OnTaskRetry(task Task, workerID int, err error, delay time.Duration) {
	r.add(event{name: "retry", attempt: task.Attempt, err: err, delay: delay}, false)
}

func (r *recorder) OnTaskCompleted(task Task, workerID int, result TaskResult) {
	r.add(event{name: "completed", attempt: task.Attempt, result: result}, true)
}

func (r *recorder) OnTaskFailed(task Task, workerID int, err error) {
	r.add(event{name: "failed", attempt: task.Attempt, err: err}, true)
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.name)
	}
	return out
}

func (r *recorder) wait(t *testing.T) event {
	t.Helper()
	select {
	case e := <-r.terminal:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a terminal callback, saw %v", r.names())
		return event{}
	}
}

func startEngine(t *testing.T, engine *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = engine.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func sameNames(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestEnqueueFillsDefaults(t *testing.T) {
	engine := New(1, quietLogger())
	task, err := engine.Enqueue(Task{PipelineID: "backend-api", Message: "Test timeout after 300s"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if task.ID == "" || task.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", task)
	}
	if task.Kind != TaskKindGeneral {
		t.Fatalf("expected kind %q, got %q", TaskKindGeneral, task.Kind)
	}
	if task.Attempt != 0 {
		t.Fatalf("expected attempt 0 before execution, got %d", task.Attempt)
	}
	if stats := engine.Stats(); stats.Queued != 1 || stats.Workers != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestEnqueueRejectsWhenQueueIsFull(t *testing.T) {
	engine := New(1, quietLogger())
	for i := 0; i < queueSlotsPerWorker; i++ {
		if _, err := engine.Enqueue(Task{PipelineID: "frontend-web"}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if _, err := engine.Enqueue(Task{PipelineID: "frontend-web"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestEngineDeliversOnFirstAttempt(t *testing.T) {
	engine := New(2, quietLogger())
	executor := &scriptedExecutor{}
	observer := newRecorder()
	engine.SetExecutor(executor)
	engine.SetObserver(observer)
	startEngine(t, engine)

	if _, err := engine.Enqueue(Task{Kind: TaskKindEscalation, PipelineID: "backend-api"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	final := observer.wait(t)
	if final.name != "completed" || final.attempt != 1 {
		t.Fatalf("expected completion on attempt 1, got %+v", final)
	}
	if final.result.Channel != "webhook" {
		t.Fatalf("expected webhook channel, got %+v", final.result)
	}
	if got := observer.names(); !sameNames(got, []string{"queued", "started", "completed"}) {
		t.Fatalf("unexpected callback order %v", got)
	}
}

func TestEngineRetriesUntilDelivered(t *testing.T) {
	engine := New(1, quietLogger())
	executor := &scriptedExecutor{failures: 2}
	observer := newRecorder()
	engine.SetExecutor(executor)
	engine.SetObserver(observer)
	engine.SetRetryPolicy(RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})
	startEngine(t, engine)

	if _, err := engine.Enqueue(Task{Kind: TaskKindEscalation, PipelineID: "backend-api"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	final := observer.wait(t)
	if final.name != "completed" || final.attempt != 3 {
		t.Fatalf("expected completion on attempt 3, got %+v", final)
	}
	want := []string{"queued", "started", "retry", "started", "retry", "started", "completed"}
	if got := observer.names(); !sameNames(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if observer.events[2].delay != time.Millisecond || observer.events[4].delay != 2*time.Millisecond {
		t.Fatalf("expected linear backoff, got %v and %v", observer.events[2].delay, observer.events[4].delay)
	}
}

func TestEngineGivesUpAfterMaxAttempts(t *testing.T) {
	engine := New(1, quietLogger())
	executor := &scriptedExecutor{failures: 10}
	observer := newRecorder()
	engine.SetExecutor(executor)
	engine.SetObserver(observer)
	engine.SetRetryPolicy(RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond})
	startEngine(t, engine)

	if _, err := engine.Enqueue(Task{Kind: TaskKindEscalation, PipelineID: "mobile-app"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	final := observer.wait(t)
	if final.name != "failed" || final.attempt != 2 {
		t.Fatalf("expected failure on attempt 2, got %+v", final)
	}
	executor.mu.Lock()
	defer executor.mu.Unlock()
	if len(executor.calls) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(executor.calls))
	}
}

func TestEngineWithoutExecutorFailsWithoutRetry(t *testing.T) {
	engine := New(1, quietLogger())
	observer := newRecorder()
	engine.SetObserver(observer)
	engine.SetRetryPolicy(RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond})
	startEngine(t, engine)

	if _, err := engine.Enqueue(Task{PipelineID: "backend-api"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	final := observer.wait(t)
	if final.name != "failed" || !errors.Is(final.err, errNoExecutor) {
		t.Fatalf("expected missing executor failure, got %+v", final)
	}
	if got := observer.names(); !sameNames(got, []string{"queued", "started", "failed"}) {
		t.Fatalf("expected no retries, got %v", got)
	}
}

func TestRetryPolicyNormalizes(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 0, Backoff: -time.Second}.normalized()
	if policy.MaxAttempts != 1 || policy.Backoff != 0 {
		t.Fatalf("unexpected policy %+v", policy)
	}
}
