// Package escalation hands pipeline escalations to the DevOps team. The
// escalate action queues a task on the orchestrator; a worker delivers it
// through the configured notifier and records the outcome.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/devops-assistant/internal/orchestrator"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/store"
)

var ErrUnsupportedTask = errors.New("unsupported task kind")

type Store interface {
	CreateEscalation(ctx context.Context, input store.CreateEscalationInput) (store.Escalation, error)
	MarkEscalationResult(ctx context.Context, id, channel string, deliveryErr error) error
	MarkEscalationFailed(ctx context.Context, id string, cause error) error
}

type Queue interface {
	Enqueue(task orchestrator.Task) (orchestrator.Task, error)
}

type PipelineSource interface {
	Get(id string) (pipeline.Pipeline, error)
}

type Service struct {
	store     Store
	queue     Queue
	pipelines PipelineSource
	notifier  Notifier
	logger    *slog.Logger
}

func NewService(sqlStore Store, queue Queue, pipelines PipelineSource, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Service{
		store:     sqlStore,
		queue:     queue,
		pipelines: pipelines,
		notifier:  notifier,
		logger:    logger,
	}
}

// Escalate records the escalation and queues its delivery.
func (s *Service) Escalate(ctx context.Context, item pipeline.Pipeline, message string) (store.Escalation, error) {
	id := "esc_" + uuid.NewString()
	record := store.Escalation{ID: id, PipelineID: item.ID, PipelineName: item.Name, Message: message, Status: store.EscalationStatusQueued}
	if s.store != nil {
		created, err := s.store.CreateEscalation(ctx, store.CreateEscalationInput{
			ID:           id,
			PipelineID:   item.ID,
			PipelineName: item.Name,
			Message:      message,
		})
		if err != nil {
			return store.Escalation{}, err
		}
		record = created
	}
	if s.queue == nil {
		return record, nil
	}
	if _, err := s.queue.Enqueue(orchestrator.Task{
		ID:         id,
		Kind:       orchestrator.TaskKindEscalation,
		PipelineID: item.ID,
		Title:      "Escalate " + item.Name,
		Message:    message,
	}); err != nil {
		err = fmt.Errorf("enqueue escalation: %w", err)
		s.MarkFailed(ctx, id, err)
		return record, err
	}
	return record, nil
}

// Execute delivers one escalation task. It satisfies orchestrator.Executor.
// A failed attempt leaves the escalation queued; MarkFailed closes it once
// the worker gives up.
func (s *Service) Execute(ctx context.Context, task orchestrator.Task) (orchestrator.TaskResult, error) {
	if task.Kind != orchestrator.TaskKindEscalation {
		return orchestrator.TaskResult{}, fmt.Errorf("%w: %s", ErrUnsupportedTask, task.Kind)
	}
	notification := Notification{
		EscalationID: task.ID,
		PipelineID:   task.PipelineID,
		PipelineName: task.PipelineID,
		Message:      strings.TrimSpace(task.Message),
		Timestamp:    pipeline.Timestamp(time.Now()),
	}
	if s.pipelines != nil {
		if item, err := s.pipelines.Get(task.PipelineID); err == nil {
			notification.PipelineName = item.Name
			notification.Status = string(item.Status)
			notification.Stage = item.Stage
			notification.Branch = item.Branch
			notification.Commit = item.Commit
			notification.Error = item.Error
		}
	}
	notification.Text = notificationText(notification)

	err := s.notifier.Notify(ctx, notification)
	s.markResult(ctx, task.ID, err)
	if err != nil {
		return orchestrator.TaskResult{}, fmt.Errorf("deliver escalation via %s: %w", s.notifier.Channel(), err)
	}
	return orchestrator.TaskResult{
		Summary: "escalation delivered for " + notification.PipelineName,
		Channel: s.notifier.Channel(),
	}, nil
}

// MarkFailed records that the escalation will not be delivered.
func (s *Service) MarkFailed(ctx context.Context, id string, cause error) {
	if s.store == nil {
		return
	}
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.store.MarkEscalationFailed(updateCtx, id, cause); err != nil {
		s.logger.Error("record escalation failure failed", "escalation_id", id, "error", err)
	}
}

func (s *Service) markResult(ctx context.Context, id string, deliveryErr error) {
	if s.store == nil {
		return
	}
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.store.MarkEscalationResult(updateCtx, id, s.notifier.Channel(), deliveryErr); err != nil {
		s.logger.Error("record escalation result failed", "escalation_id", id, "error", err)
	}
}

func notificationText(notification Notification) string {
	text := fmt.Sprintf("Pipeline %s needs DevOps attention", notification.PipelineName)
	if notification.Status != "" {
		text += fmt.Sprintf(" (status %s at %s stage)", notification.Status, notification.Stage)
	}
	if notification.Error != "" {
		text += ": " + notification.Error
	}
	return text
}
