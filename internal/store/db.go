// Package store implements the durable Job Store and User/Contest Store over
// PostgreSQL via pgx, with row-level locking for job mutation and bounded
// retry on transaction contention.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool with conservative defaults.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errors.New("empty database dsn")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// EnsureSchema idempotently creates the tables this package needs. The
// system carries no migration framework (out of scope); the schema is
// additive and safe to run on every startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	role SMALLINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contests (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	from_time TIMESTAMPTZ NOT NULL,
	to_time TIMESTAMPTZ NOT NULL,
	problem_ids TEXT NOT NULL DEFAULT '',
	user_ids TEXT NOT NULL DEFAULT '',
	submission_limit INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS jobs (
	id BIGSERIAL PRIMARY KEY,
	created_time TIMESTAMPTZ NOT NULL,
	updated_time TIMESTAMPTZ NOT NULL,
	user_id BIGINT NOT NULL,
	contest_id BIGINT NOT NULL,
	problem_id BIGINT NOT NULL,
	language TEXT NOT NULL,
	source_code TEXT NOT NULL,
	state SMALLINT NOT NULL,
	result SMALLINT NOT NULL,
	score DOUBLE PRECISION NOT NULL DEFAULT 0,
	cases JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_user_contest_problem ON jobs (user_id, contest_id, problem_id);
CREATE INDEX IF NOT EXISTS idx_jobs_contest_problem_state ON jobs (contest_id, problem_id, state);

CREATE TABLE IF NOT EXISTS problems (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	kind SMALLINT NOT NULL DEFAULT 0,
	special_judge_path TEXT NOT NULL DEFAULT '',
	cases JSONB NOT NULL
);
`)
	return err
}
