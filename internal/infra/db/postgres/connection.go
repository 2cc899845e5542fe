package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// NewPgxPool parses the DSN and returns a live connection pool.
func NewPgxPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the tables the core persists into. Idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS jobs (
  id             TEXT PRIMARY KEY,
  status         TEXT NOT NULL,
  stage          TEXT NOT NULL DEFAULT '',
  progress       INT  NOT NULL DEFAULT 0,
  correlation_id TEXT NOT NULL,
  output_ref     TEXT NOT NULL DEFAULT '',
  error_detail   TEXT NOT NULL DEFAULT '',
  compensation   TEXT NOT NULL DEFAULT '',
  created_at     TIMESTAMPTZ NOT NULL,
  started_at     TIMESTAMPTZ,
  finished_at    TIMESTAMPTZ,
  updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs (status);

CREATE TABLE IF NOT EXISTS fallback_decisions (
  id             TEXT PRIMARY KEY,
  job_id         TEXT NOT NULL,
  category       TEXT NOT NULL,
  from_provider  TEXT NOT NULL,
  to_provider    TEXT NOT NULL,
  reason         TEXT NOT NULL,
  user_confirmed BOOLEAN NOT NULL,
  created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS fallback_decisions_job_idx ON fallback_decisions (job_id);`
	_, err := pool.Exec(ctx, ddl)
	return err
}
