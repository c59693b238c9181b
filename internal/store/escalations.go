package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrEscalationNotFound = errors.New("escalation not found")

const (
	EscalationStatusQueued    = "queued"
	EscalationStatusDelivered = "delivered"
	EscalationStatusFailed    = "failed"
)

type Escalation struct {
	ID           string    `json:"id"`
	PipelineID   string    `json:"pipeline_id"`
	PipelineName string    `json:"pipeline_name,omitempty"`
	Message      string    `json:"message,omitempty"`
	Status       string    `json:"status"`
	Channel      string    `json:"channel,omitempty"`
	Attempts     int       `json:"attempts"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateEscalationInput struct {
	ID           string
	PipelineID   string
	PipelineName string
	Message      string
}

func (s *Store) CreateEscalation(ctx context.Context, input CreateEscalationInput) (Escalation, error) {
	now := time.Now().UTC()
	record := Escalation{
		ID:           strings.TrimSpace(input.ID),
		PipelineID:   strings.TrimSpace(input.PipelineID),
		PipelineName: strings.TrimSpace(input.PipelineName),
		Message:      strings.TrimSpace(input.Message),
		Status:       EscalationStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if record.ID == "" || record.PipelineID == "" {
		return Escalation{}, fmt.Errorf("missing required escalation fields")
	}
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO escalations (id, pipeline_id, pipeline_name, message, status, created_at_unix, updated_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.PipelineID,
		nullIfEmpty(record.PipelineName),
		nullIfEmpty(record.Message),
		record.Status,
		now.Unix(),
		now.Unix(),
	); err != nil {
		return Escalation{}, fmt.Errorf("insert escalation: %w", err)
	}
	return record, nil
}

// MarkEscalationResult records a delivery attempt. A nil deliveryErr marks
// the escalation delivered; a failed attempt keeps it queued with the error
// until MarkEscalationFailed closes it.
func (s *Store) MarkEscalationResult(ctx context.Context, id, channel string, deliveryErr error) error {
	status := EscalationStatusDelivered
	errorText := ""
	if deliveryErr != nil {
		status = EscalationStatusQueued
		errorText = strings.TrimSpace(deliveryErr.Error())
	}
	return s.updateEscalation(ctx,
		`UPDATE escalations
		 SET status = ?, channel = ?, attempts = attempts + 1, error_message = ?, updated_at_unix = ?
		 WHERE id = ?`,
		status,
		nullIfEmpty(channel),
		nullIfEmpty(errorText),
		time.Now().UTC().Unix(),
		strings.TrimSpace(id),
	)
}

// MarkEscalationFailed closes an escalation that will not be delivered. The
// attempt count is left as the attempts recorded it.
func (s *Store) MarkEscalationFailed(ctx context.Context, id string, cause error) error {
	errorText := ""
	if cause != nil {
		errorText = strings.TrimSpace(cause.Error())
	}
	return s.updateEscalation(ctx,
		`UPDATE escalations
		 SET status = ?, error_message = COALESCE(?, error_message), updated_at_unix = ?
		 WHERE id = ?`,
		EscalationStatusFailed,
		nullIfEmpty(errorText),
		time.Now().UTC().Unix(),
		strings.TrimSpace(id),
	)
}

func (s *Store) updateEscalation(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update escalation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("escalation rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEscalationNotFound
	}
	return nil
}

func (s *Store) LookupEscalation(ctx context.Context, id string) (Escalation, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, pipeline_id, COALESCE(pipeline_name, ''), COALESCE(message, ''), status, COALESCE(channel, ''), attempts, COALESCE(error_message, ''), created_at_unix, updated_at_unix
		 FROM escalations WHERE id = ?`,
		strings.TrimSpace(id),
	)
	record, err := scanEscalation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Escalation{}, ErrEscalationNotFound
	}
	return record, err
}

func (s *Store) ListEscalations(ctx context.Context, pipelineID string, limit int) ([]Escalation, error) {
	query := `SELECT id, pipeline_id, COALESCE(pipeline_name, ''), COALESCE(message, ''), status, COALESCE(channel, ''), attempts, COALESCE(error_message, ''), created_at_unix, updated_at_unix
		 FROM escalations`
	args := []any{}
	if id := strings.TrimSpace(pipelineID); id != "" {
		query += ` WHERE pipeline_id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY created_at_unix DESC, rowid DESC LIMIT ?`
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query escalations: %w", err)
	}
	defer rows.Close()

	results := []Escalation{}
	for rows.Next() {
		record, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, record)
	}
	return results, rows.Err()
}

func scanEscalation(row rowScanner) (Escalation, error) {
	var record Escalation
	var createdAtUnix, updatedAtUnix int64
	if err := row.Scan(
		&record.ID,
		&record.PipelineID,
		&record.PipelineName,
		&record.Message,
		&record.Status,
		&record.Channel,
		&record.Attempts,
		&record.Error,
		&createdAtUnix,
		&updatedAtUnix,
	); err != nil {
		return Escalation{}, err
	}
	record.CreatedAt = unixOrZero(createdAtUnix)
	record.UpdatedAt = unixOrZero(updatedAtUnix)
	return record, nil
}
