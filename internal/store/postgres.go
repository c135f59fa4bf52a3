package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

const (
	pgCreateRuns = `
        CREATE TABLE IF NOT EXISTS pipeline_runs (
            id TEXT PRIMARY KEY,
            requirements TEXT NOT NULL,
            status TEXT NOT NULL,
            degraded_stages JSONB NOT NULL DEFAULT '[]',
            total_tokens INTEGER NOT NULL DEFAULT 0,
            error TEXT NOT NULL DEFAULT '',
            started_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL
        );
    `
	pgInsertRun = `
        INSERT INTO pipeline_runs (id, requirements, status, degraded_stages, total_tokens, error, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            degraded_stages = EXCLUDED.degraded_stages,
            total_tokens = EXCLUDED.total_tokens,
            error = EXCLUDED.error,
            finished_at = EXCLUDED.finished_at;
    `
	pgListRuns = `
        SELECT id, requirements, status, degraded_stages::text, total_tokens, error, started_at, finished_at
        FROM pipeline_runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
)

// PostgresLedger records runs in PostgreSQL.
type PostgresLedger struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgres verifies the connection and creates the runs table if needed.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresLedger, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgCreateRuns); err != nil {
		return nil, fmt.Errorf("failed to create pipeline_runs table: %w", err)
	}
	return &PostgresLedger{pool: pool, log: logger.Named("store.postgres")}, nil
}

// RecordRun upserts rec by ID.
func (s *PostgresLedger) RecordRun(ctx context.Context, rec schemas.RunRecord) error {
	stages, err := encodeStages(rec.DegradedStages)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, pgInsertRun,
		rec.ID, rec.Requirements, string(rec.Status), stages,
		rec.TotalTokens, rec.Error, utc(rec.StartedAt), utc(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", rec.ID, err)
	}
	s.log.Debug("Run recorded", zap.String("run_id", rec.ID), zap.String("status", string(rec.Status)))
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *PostgresLedger) ListRuns(ctx context.Context, limit int) ([]schemas.RunRecord, error) {
	rows, err := s.pool.Query(ctx, pgListRuns, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []schemas.RunRecord
	for rows.Next() {
		var rec schemas.RunRecord
		var status, stages string
		if err := rows.Scan(&rec.ID, &rec.Requirements, &status, &stages, &rec.TotalTokens, &rec.Error, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		rec.Status = schemas.RunStatus(status)
		if rec.DegradedStages, err = decodeStages(stages); err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

// Close releases the pool.
func (s *PostgresLedger) Close() error {
	s.pool.Close()
	return nil
}
