// Package promptpolicy wraps a responder with the DevOps assistant persona,
// live pipeline context and optional runbook excerpts.
package promptpolicy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dwizi/devops-assistant/internal/llm"
	"github.com/dwizi/devops-assistant/internal/pipeline"
)

const (
	DefaultPersona = "You are a DevOps AI Assistant."
	fastStyle      = "Context: CI/CD pipelines, troubleshooting, deployment issues.\nStyle: Friendly, actionable, beginner-friendly.\nUse the real pipeline data above to give specific advice."
	actionGuidance = "Provide recommendations from these options:\n- RETRY: For temporary issues like timeouts or network problems\n- ROLLBACK: For code-related problems or test failures\n- ESCALATE: For infrastructure or persistent issues\n\nGive a clear, beginner-friendly explanation with your reasoning."
)

// PipelineSource provides the current pipelines for prompt context.
type PipelineSource interface {
	List() []pipeline.Pipeline
}

type Config struct {
	Persona              string
	RunbookDir           string
	MaxFailedDetails     int
	MaxRunbooks          int
	MaxRunbookBytes      int
	MaxSystemPromptBytes int
}

type Responder struct {
	base     llm.Responder
	provider PipelineSource
	cfg      Config
}

func New(base llm.Responder, provider PipelineSource, cfg Config) *Responder {
	if strings.TrimSpace(cfg.Persona) == "" {
		cfg.Persona = DefaultPersona
	}
	if cfg.MaxFailedDetails < 1 {
		cfg.MaxFailedDetails = 2
	}
	if cfg.MaxRunbooks < 1 {
		cfg.MaxRunbooks = 3
	}
	if cfg.MaxRunbookBytes < 300 {
		cfg.MaxRunbookBytes = 1400
	}
	if cfg.MaxSystemPromptBytes < 800 {
		cfg.MaxSystemPromptBytes = 12000
	}
	return &Responder{
		base:     base,
		provider: provider,
		cfg:      cfg,
	}
}

func (r *Responder) Reply(ctx context.Context, input llm.MessageInput) (string, error) {
	if r.base == nil {
		return "", fmt.Errorf("%w: base responder missing", llm.ErrUnavailable)
	}
	augmented := input
	augmented.SystemPrompt = r.BuildSystemPrompt(input)
	return r.base.Reply(ctx, augmented)
}

// BuildSystemPrompt assembles the persona, route guidance, pipeline context
// and runbooks for a message.
func (r *Responder) BuildSystemPrompt(input llm.MessageInput) string {
	lines := []string{}
	persona := strings.TrimSpace(r.cfg.Persona)
	if input.MaxWords > 0 {
		persona += fmt.Sprintf(" Provide a helpful, concise response (under %d words).", input.MaxWords)
	}
	lines = append(lines, persona)

	if r.provider != nil {
		summary := pipeline.Summarize(r.provider.List(), r.cfg.MaxFailedDetails)
		lines = append(lines, summary.ContextBlock())
	}
	if strings.EqualFold(strings.TrimSpace(input.Route), "complex") {
		lines = append(lines, actionGuidance)
	} else {
		lines = append(lines, fastStyle)
	}
	if extra := strings.TrimSpace(input.SystemPrompt); extra != "" {
		lines = append(lines, extra)
	}

	runbooks := r.loadRunbooks()
	if len(runbooks) > 0 {
		lines = append(lines, "Team runbooks:")
		lines = append(lines, runbooks...)
	}

	prompt := strings.TrimSpace(strings.Join(lines, "\n\n"))
	if len(prompt) > r.cfg.MaxSystemPromptBytes {
		return prompt[:r.cfg.MaxSystemPromptBytes]
	}
	return prompt
}

func (r *Responder) loadRunbooks() []string {
	dir := strings.TrimSpace(r.cfg.RunbookDir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".md" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	runbooks := make([]string, 0, r.cfg.MaxRunbooks)
	for _, path := range files {
		if len(runbooks) >= r.cfg.MaxRunbooks {
			break
		}
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(content))
		if text == "" {
			continue
		}
		if len(text) > r.cfg.MaxRunbookBytes {
			text = text[:r.cfg.MaxRunbookBytes] + "..."
		}
		runbooks = append(runbooks, fmt.Sprintf("- `%s`: %s", filepath.Base(path), strings.Join(strings.Fields(text), " ")))
	}
	return runbooks
}
