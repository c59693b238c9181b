package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrWorkflowRunNotFound = errors.New("workflow run not found")

const (
	WorkflowStatusRunning   = "running"
	WorkflowStatusSucceeded = "succeeded"
	WorkflowStatusFailed    = "failed"
)

type WorkflowStep struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type WorkflowRun struct {
	ID         string         `json:"id"`
	PlanID     string         `json:"plan_id"`
	Query      string         `json:"query"`
	Status     string         `json:"status"`
	Steps      []WorkflowStep `json:"steps"`
	Output     string         `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}

func (s *Store) CreateWorkflowRun(ctx context.Context, run WorkflowRun) error {
	run.ID = strings.TrimSpace(run.ID)
	run.PlanID = strings.TrimSpace(run.PlanID)
	if run.ID == "" || run.PlanID == "" {
		return fmt.Errorf("missing required workflow run fields")
	}
	if run.Status == "" {
		run.Status = WorkflowStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	steps, err := encodeSteps(run.Steps)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO workflow_runs (id, plan_id, query, status, steps_json, output, error_message, started_at_unix, finished_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.PlanID,
		run.Query,
		run.Status,
		steps,
		nullIfEmpty(run.Output),
		nullIfEmpty(run.Error),
		run.StartedAt.UTC().Unix(),
		nullIfZeroTime(run.FinishedAt),
	); err != nil {
		return fmt.Errorf("insert workflow run: %w", err)
	}
	return nil
}

func (s *Store) FinishWorkflowRun(ctx context.Context, run WorkflowRun) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	steps, err := encodeSteps(run.Steps)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE workflow_runs
		 SET status = ?, steps_json = ?, output = ?, error_message = ?, finished_at_unix = ?
		 WHERE id = ?`,
		run.Status,
		steps,
		nullIfEmpty(run.Output),
		nullIfEmpty(run.Error),
		run.FinishedAt.UTC().Unix(),
		strings.TrimSpace(run.ID),
	)
	if err != nil {
		return fmt.Errorf("finish workflow run: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("workflow run rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrWorkflowRunNotFound
	}
	return nil
}

func (s *Store) LookupWorkflowRun(ctx context.Context, id string) (WorkflowRun, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, plan_id, query, status, steps_json, COALESCE(output, ''), COALESCE(error_message, ''), started_at_unix, COALESCE(finished_at_unix, 0)
		 FROM workflow_runs WHERE id = ?`,
		strings.TrimSpace(id),
	)
	run, err := scanWorkflowRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return WorkflowRun{}, ErrWorkflowRunNotFound
	}
	return run, err
}

func (s *Store) ListWorkflowRuns(ctx context.Context, limit int) ([]WorkflowRun, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, plan_id, query, status, steps_json, COALESCE(output, ''), COALESCE(error_message, ''), started_at_unix, COALESCE(finished_at_unix, 0)
		 FROM workflow_runs
		 ORDER BY started_at_unix DESC, rowid DESC
		 LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query workflow runs: %w", err)
	}
	defer rows.Close()

	runs := []WorkflowRun{}
	for rows.Next() {
		run, err := scanWorkflowRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflowRun(row rowScanner) (WorkflowRun, error) {
	var run WorkflowRun
	var stepsJSON string
	var startedAtUnix, finishedAtUnix int64
	if err := row.Scan(
		&run.ID,
		&run.PlanID,
		&run.Query,
		&run.Status,
		&stepsJSON,
		&run.Output,
		&run.Error,
		&startedAtUnix,
		&finishedAtUnix,
	); err != nil {
		return WorkflowRun{}, err
	}
	if err := json.Unmarshal([]byte(stepsJSON), &run.Steps); err != nil {
		return WorkflowRun{}, fmt.Errorf("decode workflow steps: %w", err)
	}
	run.StartedAt = unixOrZero(startedAtUnix)
	run.FinishedAt = unixOrZero(finishedAtUnix)
	return run, nil
}

func encodeSteps(steps []WorkflowStep) (string, error) {
	if steps == nil {
		steps = []WorkflowStep{}
	}
	payload, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("encode workflow steps: %w", err)
	}
	return string(payload), nil
}
