// Package db owns the single pgxpool.Pool connection and the schema
// bootstrap run against it: a connect-then-initSchema style rather than
// a migration framework.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool against databaseURL and ensures the schema used by
// jobstore, usage, sessionstore, and apikey exists.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS generation_jobs (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			avatar_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			input_mode TEXT NOT NULL,
			script_text TEXT,
			source_audio_url TEXT,
			audio_url TEXT,
			quality TEXT NOT NULL,
			language TEXT NOT NULL,
			upstream_task_id TEXT,
			result_url TEXT,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS idx_generation_jobs_owner ON generation_jobs (owner_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_generation_jobs_status ON generation_jobs (status, created_at);`,
		`CREATE TABLE IF NOT EXISTS usage_counters (
			owner_id TEXT NOT NULL,
			resource TEXT NOT NULL,
			used DOUBLE PRECISION NOT NULL DEFAULT 0,
			"limit" DOUBLE PRECISION NOT NULL DEFAULT 0,
			billing_anchor TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (owner_id, resource)
		);`,
		`CREATE TABLE IF NOT EXISTS avatars (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			image_url TEXT,
			voice_sample_url TEXT,
			persona_prompt TEXT,
			language TEXT,
			public BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			avatar_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			language TEXT,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS session_transcript_turns (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_turns_session ON session_transcript_turns (session_id, seq);`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			secret_hash TEXT NOT NULL,
			prefix TEXT NOT NULL,
			permitted_resources TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			expiry TIMESTAMPTZ,
			last_used_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS api_key_rate_windows (
			key_id TEXT NOT NULL,
			endpoint_bucket TEXT NOT NULL,
			window_start TIMESTAMPTZ NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (key_id, endpoint_bucket, window_start)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("db: init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}
