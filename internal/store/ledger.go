// Package store persists the run ledger: one row per completed pipeline run.
// Postgres is used when a database URL is configured, SQLite for a local file.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultListLimit caps ListRuns when the caller passes a non-positive limit.
const DefaultListLimit = 20

// Open returns the ledger selected by cfg. It returns a nil ledger and no
// error when neither a URL nor a SQLite path is configured.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (schemas.RunLedger, error) {
	switch {
	case cfg.URL != "":
		pool, err := pgxpool.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		ledger, err := NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return ledger, nil
	case cfg.SQLitePath != "":
		ledger, err := NewSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return ledger, nil
	default:
		return nil, nil
	}
}

func encodeStages(stages []schemas.Role) (string, error) {
	if stages == nil {
		stages = []schemas.Role{}
	}
	b, err := json.Marshal(stages)
	if err != nil {
		return "", fmt.Errorf("encode degraded stages: %w", err)
	}
	return string(b), nil
}

func decodeStages(raw string) ([]schemas.Role, error) {
	var stages []schemas.Role
	if raw == "" {
		return stages, nil
	}
	if err := json.Unmarshal([]byte(raw), &stages); err != nil {
		return nil, fmt.Errorf("decode degraded stages: %w", err)
	}
	return stages, nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
