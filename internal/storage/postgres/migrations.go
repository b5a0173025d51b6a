package postgres

import (
	"context"

	"flowcanvas/pkg/errors"
)

// Schema statements, applied in order. Idempotent so the API can run them at
// startup when DB_AUTO_MIGRATE is set.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS workflow_designs (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		category           TEXT NOT NULL DEFAULT '',
		status             TEXT NOT NULL DEFAULT 'draft',
		nodes              JSONB NOT NULL DEFAULT '[]',
		connections        JSONB NOT NULL DEFAULT '[]',
		canvas_config      JSONB NOT NULL DEFAULT '{}',
		current_version_id TEXT,
		created_by         TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL,
		revision           BIGINT NOT NULL DEFAULT 1,
		execution_count    BIGINT NOT NULL DEFAULT 0,
		success_rate       DOUBLE PRECISION NOT NULL DEFAULT 0,
		node_count         INT NOT NULL DEFAULT 0,
		connection_count   INT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_workflow_designs_status ON workflow_designs (status)`,
	`CREATE INDEX IF NOT EXISTS idx_workflow_designs_category ON workflow_designs (category)`,

	`CREATE TABLE IF NOT EXISTS workflow_versions (
		id                   TEXT PRIMARY KEY,
		design_id            TEXT NOT NULL REFERENCES workflow_designs (id) ON DELETE CASCADE,
		version_name         TEXT NOT NULL,
		description          TEXT NOT NULL DEFAULT '',
		nodes_snapshot       JSONB NOT NULL DEFAULT '[]',
		connections_snapshot JSONB NOT NULL DEFAULT '[]',
		canvas_snapshot      JSONB NOT NULL DEFAULT '{}',
		changes              JSONB NOT NULL DEFAULT '[]',
		tags                 TEXT[] NOT NULL DEFAULT '{}',
		is_current           BOOLEAN NOT NULL DEFAULT FALSE,
		created_by           TEXT NOT NULL DEFAULT '',
		created_at           TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_workflow_versions_design ON workflow_versions (design_id, created_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_workflow_versions_current
		ON workflow_versions (design_id) WHERE is_current`,

	`CREATE TABLE IF NOT EXISTS workflow_executions (
		id            TEXT PRIMARY KEY,
		design_id     TEXT NOT NULL REFERENCES workflow_designs (id) ON DELETE CASCADE,
		version_id    TEXT,
		execution_id  TEXT NOT NULL UNIQUE,
		status        TEXT NOT NULL DEFAULT 'pending',
		input_data    JSONB NOT NULL DEFAULT '{}',
		output_data   JSONB NOT NULL DEFAULT '{}',
		logs          JSONB NOT NULL DEFAULT '[]',
		error_message TEXT,
		started_at    TIMESTAMPTZ NOT NULL,
		completed_at  TIMESTAMPTZ,
		duration_ms   BIGINT,
		current_node  TEXT,
		context       JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_workflow_executions_design ON workflow_executions (design_id, started_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_workflow_executions_status ON workflow_executions (status)`,

	`CREATE TABLE IF NOT EXISTS workflow_templates (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		category      TEXT NOT NULL DEFAULT '',
		nodes         JSONB NOT NULL DEFAULT '[]',
		connections   JSONB NOT NULL DEFAULT '[]',
		canvas_config JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate applies the schema statements.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return errors.DatabaseError("failed to apply migration", err)
		}
	}
	db.logger.Info("Database schema up to date", "statements", len(migrations))
	return nil
}
