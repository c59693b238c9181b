package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ActionEvent struct {
	ID         string    `json:"id"`
	PipelineID string    `json:"pipeline_id"`
	Action     string    `json:"action"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateActionEventInput struct {
	PipelineID string
	Action     string
	Success    bool
	Message    string
	Actor      string
	Source     string
}

type ListActionEventsInput struct {
	PipelineID string
	Action     string
	Limit      int
}

func (s *Store) CreateActionEvent(ctx context.Context, input CreateActionEventInput) (ActionEvent, error) {
	record := ActionEvent{
		ID:         "act_" + uuid.NewString(),
		PipelineID: strings.TrimSpace(input.PipelineID),
		Action:     strings.ToLower(strings.TrimSpace(input.Action)),
		Success:    input.Success,
		Message:    strings.TrimSpace(input.Message),
		Actor:      strings.TrimSpace(input.Actor),
		Source:     strings.ToLower(strings.TrimSpace(input.Source)),
		CreatedAt:  time.Now().UTC(),
	}
	if record.PipelineID == "" || record.Action == "" {
		return ActionEvent{}, fmt.Errorf("missing required action event fields")
	}
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO action_events (id, pipeline_id, action, success, message, actor, source, created_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.PipelineID,
		record.Action,
		boolToInt(record.Success),
		nullIfEmpty(record.Message),
		nullIfEmpty(record.Actor),
		nullIfEmpty(record.Source),
		record.CreatedAt.Unix(),
	); err != nil {
		return ActionEvent{}, fmt.Errorf("insert action event: %w", err)
	}
	return record, nil
}

func (s *Store) ListActionEvents(ctx context.Context, input ListActionEventsInput) ([]ActionEvent, error) {
	limit := normalizeLimit(input.Limit)
	whereParts := []string{"1=1"}
	args := make([]any, 0, 3)
	if pipelineID := strings.TrimSpace(input.PipelineID); pipelineID != "" {
		whereParts = append(whereParts, "pipeline_id = ?")
		args = append(args, pipelineID)
	}
	if action := strings.ToLower(strings.TrimSpace(input.Action)); action != "" {
		whereParts = append(whereParts, "action = ?")
		args = append(args, action)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, pipeline_id, action, success, COALESCE(message, ''), COALESCE(actor, ''), COALESCE(source, ''), created_at_unix
		 FROM action_events
		 WHERE `+strings.Join(whereParts, " AND ")+`
		 ORDER BY created_at_unix DESC, rowid DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query action events: %w", err)
	}
	defer rows.Close()

	events := make([]ActionEvent, 0, limit)
	for rows.Next() {
		var event ActionEvent
		var success int
		var createdAtUnix int64
		if err := rows.Scan(
			&event.ID,
			&event.PipelineID,
			&event.Action,
			&success,
			&event.Message,
			&event.Actor,
			&event.Source,
			&createdAtUnix,
		); err != nil {
			return nil, err
		}
		event.Success = success == 1
		event.CreatedAt = unixOrZero(createdAtUnix)
		events = append(events, event)
	}
	return events, rows.Err()
}
