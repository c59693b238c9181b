// Package actions applies pipeline actions and keeps the audit trail. Both
// the REST API and the MCP tools go through Service.Execute.
package actions

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/store"
)

type Registry interface {
	Get(id string) (pipeline.Pipeline, error)
	Apply(request pipeline.ActionRequest, now time.Time) (pipeline.ActionResult, error)
}

type Store interface {
	CreateActionEvent(ctx context.Context, input store.CreateActionEventInput) (store.ActionEvent, error)
}

type Escalator interface {
	Escalate(ctx context.Context, item pipeline.Pipeline, message string) (store.Escalation, error)
}

type Request struct {
	PipelineID string
	Action     string
	Actor      string
	Source     string
}

type Service struct {
	registry  Registry
	store     Store
	escalator Escalator
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(registry Registry, sqlStore Store, escalator Escalator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:  registry,
		store:     sqlStore,
		escalator: escalator,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute applies the action and records it. A failed escalation hand-off is
// logged but does not undo the action result.
func (s *Service) Execute(ctx context.Context, request Request) (pipeline.ActionResult, error) {
	result, err := s.registry.Apply(pipeline.ActionRequest{
		PipelineID: request.PipelineID,
		Action:     request.Action,
	}, s.now().UTC())
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidAction) {
			s.record(ctx, request, false, pipeline.InvalidActionMessage)
		}
		return pipeline.ActionResult{}, err
	}

	if result.Action == pipeline.ActionEscalate && s.escalator != nil {
		item, lookupErr := s.registry.Get(result.PipelineID)
		if lookupErr == nil {
			if _, escalateErr := s.escalator.Escalate(ctx, item, result.Message); escalateErr != nil {
				s.logger.Error("escalation hand-off failed", "pipeline_id", result.PipelineID, "error", escalateErr)
			}
		}
	}

	s.record(ctx, request, result.Success, result.Message)
	s.logger.Info("pipeline action applied",
		"pipeline_id", result.PipelineID,
		"action", result.Action,
		"source", request.Source,
	)
	return result, nil
}

func (s *Service) record(ctx context.Context, request Request, success bool, message string) {
	if s.store == nil {
		return
	}
	action := strings.ToLower(strings.TrimSpace(request.Action))
	if action == "" {
		action = "unknown"
	}
	if _, err := s.store.CreateActionEvent(ctx, store.CreateActionEventInput{
		PipelineID: request.PipelineID,
		Action:     action,
		Success:    success,
		Message:    message,
		Actor:      request.Actor,
		Source:     request.Source,
	}); err != nil {
		s.logger.Error("record action event failed", "pipeline_id", request.PipelineID, "error", err)
	}
}
