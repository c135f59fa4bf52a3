package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xkilldash9x/agentforge/api/schemas"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// sqliteTime is fixed width so text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

const (
	sqliteCreateRuns = `
        CREATE TABLE IF NOT EXISTS pipeline_runs (
            id TEXT PRIMARY KEY,
            requirements TEXT NOT NULL,
            status TEXT NOT NULL,
            degraded_stages TEXT NOT NULL DEFAULT '[]',
            total_tokens INTEGER NOT NULL DEFAULT 0,
            error TEXT NOT NULL DEFAULT '',
            started_at TEXT NOT NULL,
            finished_at TEXT NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs(started_at DESC);
    `
	sqliteInsertRun = `
        INSERT INTO pipeline_runs (id, requirements, status, degraded_stages, total_tokens, error, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            status = excluded.status,
            degraded_stages = excluded.degraded_stages,
            total_tokens = excluded.total_tokens,
            error = excluded.error,
            finished_at = excluded.finished_at;
    `
	sqliteListRuns = `
        SELECT id, requirements, status, degraded_stages, total_tokens, error, started_at, finished_at
        FROM pipeline_runs
        ORDER BY started_at DESC
        LIMIT ?;
    `
)

// SQLiteLedger records runs in a local SQLite file.
type SQLiteLedger struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteLedger, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o700); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	db, err := openDB("sqlite", expanded)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ledger pragma %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteCreateRuns); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger migration: %w", err)
	}

	return &SQLiteLedger{db: db, log: logger.Named("store.sqlite").With(zap.String("path", expanded))}, nil
}

// RecordRun upserts rec by ID.
func (s *SQLiteLedger) RecordRun(ctx context.Context, rec schemas.RunRecord) error {
	stages, err := encodeStages(rec.DegradedStages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteInsertRun,
		rec.ID, rec.Requirements, string(rec.Status), stages, rec.TotalTokens, rec.Error,
		utc(rec.StartedAt).Format(sqliteTime), utc(rec.FinishedAt).Format(sqliteTime),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", rec.ID, err)
	}
	s.log.Debug("Run recorded", zap.String("run_id", rec.ID), zap.String("status", string(rec.Status)))
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteLedger) ListRuns(ctx context.Context, limit int) ([]schemas.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListRuns, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []schemas.RunRecord
	for rows.Next() {
		var rec schemas.RunRecord
		var status, stages, started, finished string
		if err := rows.Scan(&rec.ID, &rec.Requirements, &status, &stages, &rec.TotalTokens, &rec.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		rec.Status = schemas.RunStatus(status)
		if rec.DegradedStages, err = decodeStages(stages); err != nil {
			return nil, err
		}
		if rec.StartedAt, err = time.Parse(sqliteTime, started); err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", rec.ID, err)
		}
		if rec.FinishedAt, err = time.Parse(sqliteTime, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at for run %s: %w", rec.ID, err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

// Close closes the underlying database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
