package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ChatExchange struct {
	ID           string    `json:"id"`
	ClientKey    string    `json:"client_key,omitempty"`
	Message      string    `json:"message"`
	Reply        string    `json:"reply"`
	Route        string    `json:"route"`
	Reason       string    `json:"reason,omitempty"`
	ResponseType string    `json:"type"`
	PlanID       string    `json:"plan_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateChatExchangeInput struct {
	ClientKey    string
	Message      string
	Reply        string
	Route        string
	Reason       string
	ResponseType string
	PlanID       string
}

func (s *Store) CreateChatExchange(ctx context.Context, input CreateChatExchangeInput) (ChatExchange, error) {
	record := ChatExchange{
		ID:           "chat_" + uuid.NewString(),
		ClientKey:    strings.TrimSpace(input.ClientKey),
		Message:      strings.TrimSpace(input.Message),
		Reply:        strings.TrimSpace(input.Reply),
		Route:        strings.ToLower(strings.TrimSpace(input.Route)),
		Reason:       strings.TrimSpace(input.Reason),
		ResponseType: strings.ToLower(strings.TrimSpace(input.ResponseType)),
		PlanID:       strings.TrimSpace(input.PlanID),
		CreatedAt:    time.Now().UTC(),
	}
	if record.Message == "" || record.Route == "" || record.ResponseType == "" {
		return ChatExchange{}, fmt.Errorf("missing required chat exchange fields")
	}
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO chat_exchanges (id, client_key, message, reply, route, reason, response_type, plan_id, created_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		nullIfEmpty(record.ClientKey),
		record.Message,
		record.Reply,
		record.Route,
		nullIfEmpty(record.Reason),
		record.ResponseType,
		nullIfEmpty(record.PlanID),
		record.CreatedAt.Unix(),
	); err != nil {
		return ChatExchange{}, fmt.Errorf("insert chat exchange: %w", err)
	}
	return record, nil
}

func (s *Store) ListChatExchanges(ctx context.Context, clientKey string, limit int) ([]ChatExchange, error) {
	limit = normalizeLimit(limit)
	query := `SELECT id, COALESCE(client_key, ''), message, reply, route, COALESCE(reason, ''), response_type, COALESCE(plan_id, ''), created_at_unix
		 FROM chat_exchanges`
	args := []any{}
	if key := strings.TrimSpace(clientKey); key != "" {
		query += ` WHERE client_key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY created_at_unix DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat exchanges: %w", err)
	}
	defer rows.Close()

	results := make([]ChatExchange, 0, limit)
	for rows.Next() {
		var record ChatExchange
		var createdAtUnix int64
		if err := rows.Scan(
			&record.ID,
			&record.ClientKey,
			&record.Message,
			&record.Reply,
			&record.Route,
			&record.Reason,
			&record.ResponseType,
			&record.PlanID,
			&createdAtUnix,
		); err != nil {
			return nil, err
		}
		record.CreatedAt = unixOrZero(createdAtUnix)
		results = append(results, record)
	}
	return results, rows.Err()
}
