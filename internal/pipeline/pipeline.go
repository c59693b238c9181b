package pipeline

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrInvalidAction    = errors.New("invalid action")
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusRunning Status = "running"
	StatusUnknown Status = "unknown"
)

type Action string

const (
	ActionRetry    Action = "retry"
	ActionRollback Action = "rollback"
	ActionEscalate Action = "escalate"
)

// RollbackCommit is the commit recorded on a pipeline after a rollback.
const RollbackCommit = "previous-stable-commit"

type Pipeline struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Status   Status `json:"status" yaml:"status"`
	Stage    string `json:"stage" yaml:"stage"`
	LastRun  string `json:"last_run" yaml:"last_run"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
	Progress int    `json:"progress,omitempty" yaml:"progress,omitempty"`
	Commit   string `json:"commit" yaml:"commit"`
	Branch   string `json:"branch" yaml:"branch"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
}

type ActionRequest struct {
	PipelineID string `json:"pipeline_id"`
	Action     string `json:"action"`
}

type ActionResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	PipelineID string `json:"pipeline_id"`
	Action     Action `json:"action"`
	Timestamp  string `json:"timestamp"`
}

// ParseAction accepts an action name in any case and surrounding whitespace.
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionRetry:
		return ActionRetry, nil
	case ActionRollback:
		return ActionRollback, nil
	case ActionEscalate:
		return ActionEscalate, nil
	default:
		return "", ErrInvalidAction
	}
}

// InvalidActionMessage is the user-facing explanation for ErrInvalidAction.
const InvalidActionMessage = "Invalid action. Use: retry, rollback, escalate"

// Timestamp renders t the way pipeline records store last_run values.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}

func DefaultPipelines() []Pipeline {
	return []Pipeline{
		{
			ID:       "frontend-deploy",
			Name:     "Frontend Deployment",
			Status:   StatusSuccess,
			Stage:    "deployment",
			LastRun:  "2024-01-15T10:30:00Z",
			Duration: "5m 23s",
			Commit:   "abc123f",
			Branch:   "main",
		},
		{
			ID:       "backend-api",
			Name:     "Backend API",
			Status:   StatusFailed,
			Stage:    "testing",
			LastRun:  "2024-01-15T11:15:00Z",
			Duration: "3m 45s",
			Commit:   "def456g",
			Branch:   "develop",
			Error:    "Test timeout after 300s - Database connection failed",
		},
		{
			ID:       "database-migration",
			Name:     "Database Migration",
			Status:   StatusRunning,
			Stage:    "migration",
			LastRun:  "2024-01-15T11:45:00Z",
			Progress: 80,
			Commit:   "ghi789h",
			Branch:   "main",
		},
	}
}
