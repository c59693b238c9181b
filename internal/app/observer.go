package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwizi/devops-assistant/internal/heartbeat"
	"github.com/dwizi/devops-assistant/internal/orchestrator"
)

const escalationComponent = "escalations"

type escalationCloser interface {
	MarkFailed(ctx context.Context, id string, cause error)
}

// escalationObserver logs task lifecycle, keeps the escalation worker's
// heartbeat current and closes escalations the worker gave up on.
type escalationObserver struct {
	heartbeat   *heartbeat.Registry
	escalations escalationCloser
	logger      *slog.Logger
}

func newEscalationObserver(registry *heartbeat.Registry, escalations escalationCloser, logger *slog.Logger) *escalationObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &escalationObserver{heartbeat: registry, escalations: escalations, logger: logger}
}

func (o *escalationObserver) OnTaskQueued(task orchestrator.Task) {
	o.logger.Debug("task queued", "task_id", task.ID, "kind", task.Kind, "pipeline_id", task.PipelineID)
}

func (o *escalationObserver) OnTaskStarted(task orchestrator.Task, workerID int) {
	o.logger.Debug("task started", "task_id", task.ID, "worker_id", workerID)
	if o.heartbeat != nil {
		o.heartbeat.Beat(escalationComponent, fmt.Sprintf("delivering %s", task.ID))
	}
}

func (o *escalationObserver) OnTaskRetry(task orchestrator.Task, workerID int, err error, delay time.Duration) {
	o.logger.Warn("delivery attempt failed", "task_id", task.ID, "attempt", task.Attempt, "retry_in", delay, "error", err)
	if o.heartbeat != nil {
		o.heartbeat.Beat(escalationComponent, fmt.Sprintf("retrying %s after attempt %d", task.ID, task.Attempt))
	}
}

func (o *escalationObserver) OnTaskCompleted(task orchestrator.Task, workerID int, result orchestrator.TaskResult) {
	o.logger.Info("task completed", "task_id", task.ID, "worker_id", workerID, "channel", result.Channel)
	if o.heartbeat != nil {
		o.heartbeat.Beat(escalationComponent, "last delivery succeeded")
	}
}

func (o *escalationObserver) OnTaskFailed(task orchestrator.Task, workerID int, err error) {
	o.logger.Error("task failed", "task_id", task.ID, "worker_id", workerID, "attempt", task.Attempt, "error", err)
	if o.escalations != nil && task.Kind == orchestrator.TaskKindEscalation {
		o.escalations.MarkFailed(context.Background(), task.ID, err)
	}
	if o.heartbeat != nil {
		o.heartbeat.Degrade(escalationComponent, "last delivery failed", err)
	}
}
