// Package workflow runs the multi-step analysis used for complex chat
// messages: snapshot pipeline context, build the agent prompt, then ask the
// agent. Every run is recorded with its steps.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/devops-assistant/internal/llm"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/store"
)

const (
	StepContext = "context"
	StepPrompt  = "prompt"
	StepAnalyze = "analyze"

	stepSucceeded = "succeeded"
	stepFailed    = "failed"
	stepSkipped   = "skipped"
)

var ErrEmptyQuery = errors.New("workflow query is empty")

type PipelineSource interface {
	List() []pipeline.Pipeline
}

// Recorder persists workflow runs. The sqlite store satisfies it.
type Recorder interface {
	CreateWorkflowRun(ctx context.Context, run store.WorkflowRun) error
	FinishWorkflowRun(ctx context.Context, run store.WorkflowRun) error
}

type Config struct {
	MaxFailedDetails int
	Timeout          time.Duration
}

type Run struct {
	PlanID  string               `json:"plan_id"`
	RunID   string               `json:"run_id"`
	Query   string               `json:"query"`
	Steps   []store.WorkflowStep `json:"steps"`
	Output  string               `json:"output"`
	Success bool                 `json:"success"`
	Error   string               `json:"error,omitempty"`
}

type Runner struct {
	pipelines PipelineSource
	agent     llm.Responder
	recorder  Recorder
	cfg       Config
	logger    *slog.Logger
}

func New(pipelines PipelineSource, agent llm.Responder, recorder Recorder, cfg Config, logger *slog.Logger) *Runner {
	if cfg.MaxFailedDetails < 1 {
		cfg.MaxFailedDetails = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		pipelines: pipelines,
		agent:     agent,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes the workflow for query. A failed agent step is not an error:
// the run carries canned advice in Output and Success=false.
func (r *Runner) Run(ctx context.Context, query string) (Run, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Run{}, ErrEmptyQuery
	}
	run := Run{
		PlanID: "plan-" + uuid.NewString(),
		RunID:  "prun-" + uuid.NewString(),
		Query:  query,
	}
	startedAt := time.Now().UTC()
	r.record(ctx, run, startedAt, false)

	contextBlock := r.stepContext(&run)
	prompt := r.stepPrompt(&run, query, contextBlock)
	r.stepAnalyze(ctx, &run, prompt)

	if !run.Success {
		run.Output = FallbackAdvice(query)
	}
	r.record(ctx, run, startedAt, true)
	r.logger.Info("workflow run finished",
		"plan_id", run.PlanID,
		"run_id", run.RunID,
		"success", run.Success,
		"duration", time.Since(startedAt).String(),
	)
	return run, nil
}

func (r *Runner) stepContext(run *Run) string {
	started := time.Now()
	if r.pipelines == nil {
		run.Steps = append(run.Steps, store.WorkflowStep{Name: StepContext, Status: stepSkipped})
		return ""
	}
	block := pipeline.Summarize(r.pipelines.List(), r.cfg.MaxFailedDetails).ContextBlock()
	run.Steps = append(run.Steps, store.WorkflowStep{
		Name:     StepContext,
		Status:   stepSucceeded,
		Output:   block,
		Duration: time.Since(started).String(),
	})
	return block
}

func (r *Runner) stepPrompt(run *Run, query, contextBlock string) string {
	prompt := BuildPrompt(query, contextBlock)
	run.Steps = append(run.Steps, store.WorkflowStep{Name: StepPrompt, Status: stepSucceeded, Output: prompt})
	return prompt
}

func (r *Runner) stepAnalyze(ctx context.Context, run *Run, prompt string) {
	started := time.Now()
	step := store.WorkflowStep{Name: StepAnalyze}
	defer func() {
		step.Duration = time.Since(started).String()
		run.Steps = append(run.Steps, step)
	}()

	if r.agent == nil {
		step.Status = stepFailed
		step.Error = llm.ErrUnavailable.Error()
		run.Error = step.Error
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	reply, err := r.agent.Reply(callCtx, llm.MessageInput{Text: prompt, Route: "complex"})
	if err == nil && strings.TrimSpace(reply) == "" {
		err = fmt.Errorf("agent returned an empty reply")
	}
	if err != nil {
		r.logger.Warn("workflow agent failed", "plan_id", run.PlanID, "error", err)
		step.Status = stepFailed
		step.Error = err.Error()
		run.Error = err.Error()
		return
	}
	step.Status = stepSucceeded
	step.Output = strings.TrimSpace(reply)
	run.Output = step.Output
	run.Success = true
}

func (r *Runner) record(ctx context.Context, run Run, startedAt time.Time, finished bool) {
	if r.recorder == nil {
		return
	}
	record := store.WorkflowRun{
		ID:        run.RunID,
		PlanID:    run.PlanID,
		Query:     run.Query,
		Status:    store.WorkflowStatusRunning,
		Steps:     run.Steps,
		Output:    run.Output,
		Error:     run.Error,
		StartedAt: startedAt,
	}
	var err error
	if !finished {
		err = r.recorder.CreateWorkflowRun(ctx, record)
	} else {
		record.Status = store.WorkflowStatusSucceeded
		if !run.Success {
			record.Status = store.WorkflowStatusFailed
		}
		err = r.recorder.FinishWorkflowRun(ctx, record)
	}
	if err != nil {
		r.logger.Error("record workflow run failed", "run_id", run.RunID, "error", err)
	}
}

// BuildPrompt is the question handed to the agent.
func BuildPrompt(query, contextBlock string) string {
	prompt := "Answer this question about CI/CD pipelines: " + strings.TrimSpace(query)
	if block := strings.TrimSpace(contextBlock); block != "" {
		prompt += "\n\n" + block
	}
	return prompt
}

// FallbackAdvice is returned when the agent cannot answer.
func FallbackAdvice(query string) string {
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "database timeout"):
		return "**RETRY** - Database timeouts are usually temporary. Try running the pipeline again as the database connection should be restored."
	case strings.Contains(lower, "failed"):
		return "**RETRY** first for temporary issues, then **ROLLBACK** if it's a code problem, or **ESCALATE** for infrastructure issues."
	default:
		return "I recommend checking your pipeline logs first, then try **RETRY** for temporary issues."
	}
}
