// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/batchlog/internal/store"
)

// Schema creates the batch_runs table used by ProgressStore.
const Schema = `
CREATE TABLE IF NOT EXISTS batch_runs (
	id            uuid PRIMARY KEY,
	name          text        NOT NULL DEFAULT '',
	started_at    timestamptz NOT NULL,
	finished_at   timestamptz,
	status        text        NOT NULL,
	total         bigint      NOT NULL DEFAULT 0,
	batches       bigint      NOT NULL DEFAULT 0,
	items         bigint      NOT NULL DEFAULT 0,
	last_update   timestamptz NOT NULL,
	error_message text
);
CREATE INDEX IF NOT EXISTS batch_runs_started_at_idx ON batch_runs (started_at DESC);
`

const runColumns = `id, name, started_at, finished_at, status, total, batches, items, last_update, error_message`

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgxIface is the subset of *pgxpool.Pool the store uses.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ProgressStore implements store.RunRepository using Postgres.
type ProgressStore struct {
	pool pgxIface
}

var _ store.RunRepository = (*ProgressStore)(nil)

// NewProgressStore connects a pool using cfg.
func NewProgressStore(ctx context.Context, cfg Config) (*ProgressStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ProgressStore{pool: pool}, nil
}

// NewProgressStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewProgressStoreWithPool(pool pgxIface) (*ProgressStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ProgressStore{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *ProgressStore) Close() {
	s.pool.Close()
}

// EnsureSchema creates the batch_runs table if it does not exist.
func (s *ProgressStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpsertRunStart inserts a running run or refreshes the name and total of a known one.
func (s *ProgressStore) UpsertRunStart(
	ctx context.Context,
	runID uuid.UUID,
	name string,
	total int64,
	startedAt time.Time,
) error {
	query := `
		INSERT INTO batch_runs (id, name, total, started_at, last_update, status)
		VALUES ($1, $2, $3, $4, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, total = EXCLUDED.total, status = EXCLUDED.status;
	`
	_, err := s.pool.Exec(ctx, query, runID, name, total, startedAt, string(store.RunRunning))
	if err != nil {
		return fmt.Errorf("failed to upsert run start: %w", err)
	}
	return nil
}

// AddRunProgress adds batch and item deltas, creating a placeholder row when
// progress arrives before the start.
func (s *ProgressStore) AddRunProgress(
	ctx context.Context,
	runID uuid.UUID,
	deltaBatches,
	deltaItems int64,
	at time.Time,
) error {
	query := `
		INSERT INTO batch_runs (id, started_at, last_update, status, batches, items)
		VALUES ($1, $2, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET batches = batch_runs.batches + EXCLUDED.batches,
			items = batch_runs.items + EXCLUDED.items,
			last_update = GREATEST(batch_runs.last_update, EXCLUDED.last_update);
	`
	_, err := s.pool.Exec(ctx, query, runID, at, string(store.RunRunning), deltaBatches, deltaItems)
	if err != nil {
		return fmt.Errorf("failed to add run progress: %w", err)
	}
	return nil
}

// CompleteRun marks a run as finished with a status and optional error message.
func (s *ProgressStore) CompleteRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	query := `
		UPDATE batch_runs
		SET finished_at = $1, status = $2, error_message = $3
		WHERE id = $4;
	`
	tag, err := s.pool.Exec(ctx, query, finishedAt, string(status), errMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetRun retrieves a single run by its ID.
func (s *ProgressStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	query := `SELECT ` + runColumns + ` FROM batch_runs WHERE id = $1;`
	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs newest first, with optional status filtering.
func (s *ProgressStore) ListRuns(
	ctx context.Context,
	status *store.RunStatus,
	limit,
	offset int,
) ([]store.Run, error) {
	query := `SELECT ` + runColumns + `
		FROM batch_runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}
	rows, err := s.pool.Query(ctx, query, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []store.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (store.Run, error) {
	var (
		run    store.Run
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.Name,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.Total,
		&run.Batches,
		&run.Items,
		&run.LastUpdate,
		&run.ErrorMessage,
	)
	if err != nil {
		return store.Run{}, err
	}
	run.Status = store.RunStatus(status)
	return run, nil
}
