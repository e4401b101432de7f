// Package store declares interfaces for persisting run progress.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the batch_runs status column.
type RunStatus string

// Run statuses persisted in batch_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// ParseRunStatus validates a status filter.
func ParseRunStatus(s string) (RunStatus, error) {
	switch status := RunStatus(s); status {
	case RunRunning, RunSuccess, RunError:
		return status, nil
	default:
		return "", fmt.Errorf("unknown run status %q", s)
	}
}

// Run models the batch_runs table for API responses.
type Run struct {
	// ID is the run identifier shared with progress events.
	ID uuid.UUID
	// Name is the run description given when it started.
	Name string
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time
	// Status is running/success/error.
	Status RunStatus
	// Total is the expected item count, zero when unknown.
	Total int64
	// Batches counts completed batches.
	Batches int64
	// Items counts completed items.
	Items int64
	// LastUpdate is the timestamp of the most recent progress delta.
	LastUpdate time.Time
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
}

// RunRepository persists incremental run progress.
type RunRepository interface {
	// UpsertRunStart inserts (or idempotently updates) a running record.
	UpsertRunStart(ctx context.Context, runID uuid.UUID, name string, total int64, startedAt time.Time) error
	// AddRunProgress applies batch/item deltas to a run.
	AddRunProgress(ctx context.Context, runID uuid.UUID, deltaBatches, deltaItems int64, at time.Time) error
	// CompleteRun marks the run finished with the provided status and error.
	CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, errMsg *string) error

	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	// ListRuns returns runs filtered by optional status plus limit/offset,
	// most recently started first.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
}
