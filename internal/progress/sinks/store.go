package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/batchlog/internal/progress"
	"github.com/JakeFAU/batchlog/internal/store"
)

// StoreSink persists progress via a store.RunRepository. It collapses batch
// deltas per run to reduce write amplification, flushing a run's pending delta
// before recording its completion.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume applies the batch to the repository in event order. It respects ctx
// deadlines and stops at the first repository error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	pending := newDeltas()

	for _, evt := range batch {
		runID := evt.RunUUID()
		switch evt.Stage {
		case progress.StageRunStart:
			if err := s.repo.UpsertRunStart(ctx, runID, evt.Name, evt.Total, evt.TS); err != nil {
				return fmt.Errorf("upsert run start: %w", err)
			}
		case progress.StageBatchDone:
			pending.add(runID, evt)
		case progress.StageRunDone, progress.StageRunError:
			if err := s.flushRun(ctx, pending, runID); err != nil {
				return err
			}
			if err := s.completeRun(ctx, runID, evt); err != nil {
				return err
			}
		}
	}

	for _, runID := range pending.order {
		if err := s.flushRun(ctx, pending, runID); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) flushRun(ctx context.Context, pending *deltas, runID uuid.UUID) error {
	d, ok := pending.take(runID)
	if !ok || (d.batches == 0 && d.items == 0) {
		return nil
	}
	if err := s.repo.AddRunProgress(ctx, runID, d.batches, d.items, d.at); err != nil {
		return fmt.Errorf("add run progress: %w", err)
	}
	return nil
}

func (s *StoreSink) completeRun(ctx context.Context, runID uuid.UUID, evt progress.Event) error {
	status := store.RunSuccess
	var note *string
	if evt.Stage == progress.StageRunError {
		status = store.RunError
		if evt.Note != "" {
			note = &evt.Note
		}
	}
	if err := s.repo.CompleteRun(ctx, runID, evt.TS, status, note); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	s.logger.Debug("run persisted", zap.String("run_id", runID.String()), zap.String("status", string(status)))
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type delta struct {
	batches int64
	items   int64
	at      time.Time
}

// deltas accumulates per-run progress, remembering first-seen order so
// flushes are deterministic.
type deltas struct {
	byRun map[uuid.UUID]*delta
	order []uuid.UUID
}

func newDeltas() *deltas {
	return &deltas{byRun: make(map[uuid.UUID]*delta)}
}

func (d *deltas) add(runID uuid.UUID, evt progress.Event) {
	cur := d.byRun[runID]
	if cur == nil {
		cur = &delta{}
		d.byRun[runID] = cur
		d.order = append(d.order, runID)
	}
	cur.batches += evt.Batches
	cur.items += evt.Items
	if evt.TS.After(cur.at) {
		cur.at = evt.TS
	}
}

func (d *deltas) take(runID uuid.UUID) (delta, bool) {
	cur, ok := d.byRun[runID]
	if !ok {
		return delta{}, false
	}
	delete(d.byRun, runID)
	return *cur, true
}
