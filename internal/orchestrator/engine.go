// Package orchestrator runs background tasks such as escalation delivery on
// a fixed pool of workers, retrying failed attempts with linear backoff.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull  = errors.New("task queue is full")
	errNoExecutor = errors.New("no task executor configured")
)

const queueSlotsPerWorker = 50

type TaskKind string

const (
	TaskKindGeneral    TaskKind = "general"
	TaskKindEscalation TaskKind = "escalation"
)

type Task struct {
	ID         string
	Kind       TaskKind
	PipelineID string
	Title      string
	Message    string
	// Attempt counts executions so far, starting at 1 for the first run.
	Attempt   int
	CreatedAt time.Time
}

type TaskResult struct {
	Summary string
	Channel string
}

type Executor interface {
	Execute(ctx context.Context, task Task) (TaskResult, error)
}

// Observer hears about every transition. OnTaskFailed fires once, after the
// last attempt; earlier failures are reported through OnTaskRetry.
type Observer interface {
	OnTaskQueued(task Task)
	OnTaskStarted(task Task, workerID int)
	OnTaskRetry(task Task, workerID int, err error, delay time.Duration)
	OnTaskCompleted(task Task, workerID int, result TaskResult)
	OnTaskFailed(task Task, workerID int, err error)
}

type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// delay grows linearly with the attempt that just failed.
func (p RetryPolicy) delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.Backoff
}

type Stats struct {
	Workers  int
	Queued   int
	Running  int
	Retrying int
}

type Engine struct {
	workers int
	tasks   chan Task
	logger  *slog.Logger
	started atomic.Bool

	running  atomic.Int64
	retrying atomic.Int64

	mu       sync.RWMutex
	executor Executor
	observer Observer
	retry    RetryPolicy
}

func New(workers int, logger *slog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		workers: workers,
		tasks:   make(chan Task, workers*queueSlotsPerWorker),
		logger:  logger,
		retry:   RetryPolicy{MaxAttempts: 1},
	}
}

func (e *Engine) SetExecutor(executor Executor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executor = executor
}

func (e *Engine) SetObserver(observer Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = observer
}

func (e *Engine) SetRetryPolicy(policy RetryPolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retry = policy.normalized()
}

func (e *Engine) Stats() Stats {
	return Stats{
		Workers:  e.workers,
		Queued:   len(e.tasks),
		Running:  int(e.running.Load()),
		Retrying: int(e.retrying.Load()),
	}
}

// Start runs the worker pool until ctx is cancelled. A second call only waits.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		<-ctx.Done()
		return nil
	}
	var pool sync.WaitGroup
	for workerID := 1; workerID <= e.workers; workerID++ {
		pool.Add(1)
		go func() {
			defer pool.Done()
			e.work(ctx, workerID)
		}()
	}
	pool.Wait()
	return nil
}

func (e *Engine) Enqueue(task Task) (Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Kind == "" {
		task.Kind = TaskKindGeneral
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if err := e.push(task); err != nil {
		return Task{}, err
	}
	e.logger.Info("task queued", "task_id", task.ID, "kind", task.Kind, "pipeline_id", task.PipelineID)
	if observer := e.snapshot().observer; observer != nil {
		observer.OnTaskQueued(task)
	}
	return task, nil
}

func (e *Engine) push(task Task) error {
	select {
	case e.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

type engineState struct {
	executor Executor
	observer Observer
	retry    RetryPolicy
}

func (e *Engine) snapshot() engineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return engineState{executor: e.executor, observer: e.observer, retry: e.retry}
}

func (e *Engine) work(ctx context.Context, workerID int) {
	logger := e.logger.With("worker_id", workerID)
	logger.Debug("worker started")
	defer logger.Debug("worker stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-e.tasks:
			e.run(ctx, logger, workerID, task)
		}
	}
}

func (e *Engine) run(ctx context.Context, logger *slog.Logger, workerID int, task Task) {
	state := e.snapshot()
	task.Attempt++
	logger = logger.With("task_id", task.ID, "kind", task.Kind, "attempt", task.Attempt)
	if state.observer != nil {
		state.observer.OnTaskStarted(task, workerID)
	}

	e.running.Add(1)
	result, err := e.execute(ctx, state.executor, task)
	e.running.Add(-1)

	if err == nil {
		logger.Info("task completed", "summary", result.Summary, "channel", result.Channel)
		if state.observer != nil {
			state.observer.OnTaskCompleted(task, workerID, result)
		}
		return
	}

	if task.Attempt < state.retry.MaxAttempts && !errors.Is(err, errNoExecutor) && ctx.Err() == nil {
		delay := state.retry.delay(task.Attempt)
		logger.Warn("task attempt failed, retrying", "delay", delay, "error", err)
		if state.observer != nil {
			state.observer.OnTaskRetry(task, workerID, err, delay)
		}
		e.requeueAfter(ctx, task, delay)
		return
	}

	logger.Error("task failed", "error", err)
	if state.observer != nil {
		state.observer.OnTaskFailed(task, workerID, err)
	}
}

func (e *Engine) execute(ctx context.Context, executor Executor, task Task) (TaskResult, error) {
	if executor == nil {
		return TaskResult{}, errNoExecutor
	}
	return executor.Execute(ctx, task)
}

// requeueAfter puts the task back once delay passes. A cancelled ctx drops
// it; a full queue drops it and reports the task as failed.
func (e *Engine) requeueAfter(ctx context.Context, task Task, delay time.Duration) {
	e.retrying.Add(1)
	go func() {
		defer e.retrying.Add(-1)
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := e.push(task); err != nil {
			e.logger.Error("retry dropped", "task_id", task.ID, "attempt", task.Attempt, "error", err)
			if observer := e.snapshot().observer; observer != nil {
				observer.OnTaskFailed(task, 0, err)
			}
		}
	}()
}
