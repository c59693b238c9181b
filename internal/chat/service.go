// Package chat answers dashboard chat messages. Simple messages get a direct
// model reply (or a rule-based one); complex messages go through the
// workflow agent.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dwizi/devops-assistant/internal/llm"
	"github.com/dwizi/devops-assistant/internal/llm/safety"
	"github.com/dwizi/devops-assistant/internal/memorylog"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/routing"
	"github.com/dwizi/devops-assistant/internal/store"
	"github.com/dwizi/devops-assistant/internal/workflow"
)

const (
	TypeFastLLM          = "fast_llm"
	TypeRuleBased        = "rule_based"
	TypeWorkflowSuccess  = "workflow_success"
	TypeWorkflowFallback = "workflow_fallback"
	TypeRateLimited      = "rate_limited"
	TypeRejected         = "rejected"
)

const (
	fastPrefix     = "**Fast AI:** "
	workflowHeader = "**AI Workflow Assistant:**"
)

type PipelineSource interface {
	List() []pipeline.Pipeline
}

type Workflow interface {
	Run(ctx context.Context, query string) (workflow.Run, error)
}

type Store interface {
	CreateChatExchange(ctx context.Context, input store.CreateChatExchangeInput) (store.ChatExchange, error)
}

type Limiter interface {
	Check(input safety.Request) safety.Decision
}

type Config struct {
	MaxWords       int
	LLMTimeout     time.Duration
	TranscriptRoot string
}

type MessageInput struct {
	ClientKey string
	Text      string
}

type MessageOutput struct {
	Handled bool   `json:"handled"`
	Reply   string `json:"reply"`
	Route   string `json:"route"`
	Reason  string `json:"reason"`
	Type    string `json:"type"`
	PlanID  string `json:"plan_id,omitempty"`
	// RetryAfterSec is set on rate-limited replies.
	RetryAfterSec int `json:"retry_after_sec,omitempty"`
}

type Service struct {
	pipelines PipelineSource
	responder llm.Responder
	workflow  Workflow
	store     Store
	limiter   Limiter
	cfg       Config
	logger    *slog.Logger
}

func New(pipelines PipelineSource, responder llm.Responder, flow Workflow, sqlStore Store, limiter Limiter, cfg Config, logger *slog.Logger) *Service {
	if cfg.MaxWords < 1 {
		cfg.MaxWords = 150
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pipelines: pipelines,
		responder: responder,
		workflow:  flow,
		store:     sqlStore,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *Service) HandleMessage(ctx context.Context, input MessageInput) (MessageOutput, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return MessageOutput{Handled: false}, nil
	}
	decision := routing.Classify(text)
	output := MessageOutput{
		Handled: true,
		Route:   string(decision.Route),
		Reason:  decision.Reason,
	}

	if s.limiter != nil {
		check := s.limiter.Check(safety.Request{ClientKey: input.ClientKey, Text: text})
		if !check.Allowed {
			if strings.TrimSpace(check.Notify) == "" {
				return MessageOutput{Handled: false, Route: output.Route, Reason: check.Reason}, nil
			}
			output.Reply = check.Notify
			output.Type = TypeRejected
			output.Reason = check.Reason
			if check.Reason == safety.ReasonRateLimited {
				output.Type = TypeRateLimited
				output.RetryAfterSec = int(math.Ceil(check.RetryAfter.Seconds()))
			}
			s.logger.Warn("chat message rejected", "client_key", input.ClientKey, "reason", check.Reason, "retry_after", check.RetryAfter)
			return output, nil
		}
	}
	s.transcript(input.ClientKey, "inbound", "", "", text)

	switch decision.Route {
	case routing.RouteComplex:
		output = s.handleComplex(ctx, text, output)
	default:
		output = s.handleSimple(ctx, input.ClientKey, text, output)
	}

	s.logger.Info("chat message handled",
		"client_key", input.ClientKey,
		"route", output.Route,
		"reason", output.Reason,
		"type", output.Type,
	)
	s.persist(ctx, input.ClientKey, text, output)
	s.transcript(input.ClientKey, "outbound", output.Route, output.Type, output.Reply)
	return output, nil
}

func (s *Service) handleSimple(ctx context.Context, clientKey, text string, output MessageOutput) MessageOutput {
	if s.responder != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
		reply, err := s.responder.Reply(callCtx, llm.MessageInput{
			ClientKey: clientKey,
			Route:     string(routing.RouteSimple),
			Text:      text,
			MaxWords:  s.cfg.MaxWords,
		})
		cancel()
		reply = strings.TrimSpace(reply)
		if err == nil && reply != "" {
			output.Reply = fastPrefix + reply
			output.Type = TypeFastLLM
			return output
		}
		if err != nil && !errors.Is(err, llm.ErrUnavailable) {
			s.logger.Warn("fast llm reply failed, using rules", "error", err)
		}
	}
	output.Reply = RuleBasedReply(text, s.snapshot())
	output.Type = TypeRuleBased
	return output
}

func (s *Service) handleComplex(ctx context.Context, text string, output MessageOutput) MessageOutput {
	if s.workflow == nil {
		output.Reply = workflowHeader + "\n\n" + workflow.FallbackAdvice(text)
		output.Type = TypeWorkflowFallback
		return output
	}
	run, err := s.workflow.Run(ctx, text)
	if err != nil {
		s.logger.Error("workflow run failed", "error", err)
		output.Reply = workflowHeader + "\n\n" + workflow.FallbackAdvice(text)
		output.Type = TypeWorkflowFallback
		return output
	}
	output.PlanID = run.PlanID
	if run.Success {
		output.Reply = workflowHeader + "\n\n" + run.Output + "\n\n*Plan ID: " + run.PlanID + "*"
		output.Type = TypeWorkflowSuccess
		return output
	}
	output.Reply = workflowHeader + "\n\n" + run.Output
	output.Type = TypeWorkflowFallback
	return output
}

func (s *Service) snapshot() []pipeline.Pipeline {
	if s.pipelines == nil {
		return nil
	}
	return s.pipelines.List()
}

func (s *Service) persist(ctx context.Context, clientKey, text string, output MessageOutput) {
	if s.store == nil {
		return
	}
	if _, err := s.store.CreateChatExchange(ctx, store.CreateChatExchangeInput{
		ClientKey:    clientKey,
		Message:      text,
		Reply:        output.Reply,
		Route:        output.Route,
		Reason:       output.Reason,
		ResponseType: output.Type,
		PlanID:       output.PlanID,
	}); err != nil {
		s.logger.Error("persist chat exchange failed", "error", err)
	}
}

func (s *Service) transcript(clientKey, direction, route, responseType, text string) {
	if strings.TrimSpace(s.cfg.TranscriptRoot) == "" {
		return
	}
	if err := memorylog.Append(memorylog.Entry{
		Root:         s.cfg.TranscriptRoot,
		ClientKey:    clientKey,
		Direction:    direction,
		Route:        route,
		ResponseType: responseType,
		Text:         text,
		Timestamp:    time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("append chat transcript failed", "error", err, "client_key", clientKey)
	}
}
