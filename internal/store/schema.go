package store

import (
	"context"
	"fmt"
	"time"
)

type migration struct {
	version int
	name    string
	ddl     string
}

// migrations are applied in order, each in its own transaction. Append new
// versions; never edit an applied one.
var migrations = []migration{
	{1, "actions and chat", `
		CREATE TABLE action_events (
			id TEXT PRIMARY KEY,
			pipeline_id TEXT NOT NULL,
			action TEXT NOT NULL,
			success INTEGER NOT NULL DEFAULT 0,
			message TEXT,
			actor TEXT,
			source TEXT,
			created_at_unix INTEGER NOT NULL
		);
		CREATE INDEX idx_action_events_pipeline ON action_events(pipeline_id, created_at_unix);
		CREATE TABLE chat_exchanges (
			id TEXT PRIMARY KEY,
			client_key TEXT,
			message TEXT NOT NULL,
			reply TEXT NOT NULL,
			route TEXT NOT NULL,
			reason TEXT,
			response_type TEXT NOT NULL,
			plan_id TEXT,
			created_at_unix INTEGER NOT NULL
		);
		CREATE INDEX idx_chat_exchanges_client ON chat_exchanges(client_key, created_at_unix);`},
	{2, "workflow runs", `
		CREATE TABLE workflow_runs (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			steps_json TEXT NOT NULL DEFAULT '[]',
			output TEXT,
			error_message TEXT,
			started_at_unix INTEGER NOT NULL,
			finished_at_unix INTEGER
		);`},
	{3, "escalations", `
		CREATE TABLE escalations (
			id TEXT PRIMARY KEY,
			pipeline_id TEXT NOT NULL,
			pipeline_name TEXT,
			message TEXT,
			status TEXT NOT NULL,
			channel TEXT,
			attempts INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at_unix INTEGER NOT NULL,
			updated_at_unix INTEGER NOT NULL
		);
		CREATE INDEX idx_escalations_pipeline ON escalations(pipeline_id, created_at_unix);`},
}

// AutoMigrate brings the schema up to the latest version.
func (s *Store) AutoMigrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at_unix INTEGER NOT NULL
	);`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	for _, step := range migrations {
		if step.version <= current {
			continue
		}
		if err := s.applyMigration(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion reports the highest applied migration, or 0 on a fresh file.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) applyMigration(ctx context.Context, step migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration v%d: %w", step.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, step.ddl); err != nil {
		return fmt.Errorf("apply migration v%d (%s): %w", step.version, step.name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at_unix) VALUES (?, ?)`,
		step.version, time.Now().UTC().Unix(),
	); err != nil {
		return fmt.Errorf("record migration v%d: %w", step.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration v%d: %w", step.version, err)
	}
	return nil
}
