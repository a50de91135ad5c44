package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. Statements are idempotent so restarts are
// safe; structural migrations beyond this belong in ops tooling.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id            BIGSERIAL PRIMARY KEY,
		source        TEXT NOT NULL,
		source_key    TEXT NOT NULL,
		title         TEXT NOT NULL DEFAULT '',
		company       TEXT NOT NULL DEFAULT '',
		location      TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL DEFAULT '',
		is_remote     BOOLEAN NOT NULL DEFAULT FALSE,
		salary_min    DOUBLE PRECISION,
		salary_max    DOUBLE PRECISION,
		url           TEXT NOT NULL DEFAULT '',
		posted_at     TIMESTAMPTZ,
		discovered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ignored       BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (source, source_key)
	)`,
	`CREATE TABLE IF NOT EXISTS recommended_queries (
		id                     BIGSERIAL PRIMARY KEY,
		query                  TEXT NOT NULL,
		page                   INTEGER NOT NULL DEFAULT 1,
		num_pages              INTEGER NOT NULL DEFAULT 1,
		country                TEXT NOT NULL DEFAULT 'us',
		language               TEXT NOT NULL DEFAULT '',
		date_posted            TEXT NOT NULL DEFAULT 'all',
		work_from_home         BOOLEAN NOT NULL DEFAULT FALSE,
		employment_types       TEXT NOT NULL DEFAULT '',
		job_requirements       TEXT NOT NULL DEFAULT '',
		radius                 INTEGER,
		exclude_job_publishers TEXT NOT NULL DEFAULT '',
		enabled                BOOLEAN NOT NULL DEFAULT TRUE,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS scoring_patterns (
		id         BIGSERIAL PRIMARY KEY,
		pattern    TEXT NOT NULL,
		weight     DOUBLE PRECISION NOT NULL DEFAULT 10,
		effect     TEXT NOT NULL DEFAULT '+',
		count_once BOOLEAN NOT NULL DEFAULT TRUE,
		disqualify BOOLEAN NOT NULL DEFAULT FALSE,
		enabled    BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS recommended_runs (
		id               BIGSERIAL PRIMARY KEY,
		status           TEXT NOT NULL,
		run_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		total_fetched    INTEGER NOT NULL DEFAULT 0,
		new_jobs         INTEGER NOT NULL DEFAULT 0,
		duplicates       INTEGER NOT NULL DEFAULT 0,
		query_errors     INTEGER NOT NULL DEFAULT 0,
		error_message    TEXT,
		cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
		params           JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE TABLE IF NOT EXISTS recommended_matches (
		run_id BIGINT NOT NULL REFERENCES recommended_runs(id),
		job_id BIGINT NOT NULL REFERENCES jobs(id),
		score  DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, job_id)
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id                    BIGSERIAL PRIMARY KEY,
		min_recommended_score INTEGER,
		recommended_num_pages INTEGER NOT NULL DEFAULT 1,
		cron_schedule         TEXT NOT NULL DEFAULT '',
		cron_enabled          BOOLEAN NOT NULL DEFAULT FALSE,
		cover_letter_model    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_status_run_at
		ON recommended_runs (status, run_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_run_score
		ON recommended_matches (run_id, score DESC)`,
}

// EnsureSchema creates all tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
