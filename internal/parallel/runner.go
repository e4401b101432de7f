package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/batchlog/internal/clock"
	"github.com/JakeFAU/batchlog/internal/clock/system"
	idgen "github.com/JakeFAU/batchlog/internal/id/uuid"
	"github.com/JakeFAU/batchlog/internal/queue/memory"
)

// ErrTaskPanic wraps a panic recovered from a task.
var ErrTaskPanic = errors.New("task panicked")

// Task is one unit of work. It should return promptly once ctx is done.
type Task func(ctx context.Context) error

// Batch describes a completed batch.
type Batch struct {
	RunID    uuid.UUID
	Index    int
	Size     int
	Duration time.Duration
}

// Summary reports what a Run completed.
type Summary struct {
	RunID   uuid.UUID
	Batches int
	Items   int
	Elapsed time.Duration
}

// IDGenerator issues run IDs.
type IDGenerator interface {
	NewID() (uuid.UUID, error)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for run and batch diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBatchCallback adds a callback that sees this runner's batches before the
// process-wide observers do.
func WithBatchCallback(cb BatchCallback) Option {
	return func(r *Runner) {
		if cb != nil {
			r.callbacks = append(r.callbacks, cb)
		}
	}
}

// WithClock overrides the time source used for durations.
func WithClock(clk clock.Clock) Option {
	return func(r *Runner) {
		if clk != nil {
			r.clock = clk
		}
	}
}

// WithIDGenerator overrides how run IDs are issued.
func WithIDGenerator(ids IDGenerator) Option {
	return func(r *Runner) {
		if ids != nil {
			r.ids = ids
		}
	}
}

// Runner executes task lists on a worker pool.
type Runner struct {
	cfg       Config
	logger    *zap.Logger
	clock     clock.Clock
	ids       IDGenerator
	callbacks []BatchCallback

	// deliverMu serializes the injected callbacks.
	deliverMu sync.Mutex
}

// New validates cfg and builds a Runner.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("parallel config: %w", err)
	}
	r := &Runner{
		cfg:    cfg.withDefaults(),
		logger: zap.NewNop(),
		clock:  system.New(),
		ids:    idgen.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the effective configuration after defaults.
func (r *Runner) Config() Config {
	return r.cfg
}

type work struct {
	index int
	tasks []Task
}

type tally struct {
	mu      sync.Mutex
	batches int
	items   int
}

// Run executes tasks and blocks until they finish. The first task error
// cancels the remaining work and is returned; batches that completed before it
// are still reported and counted in the Summary.
func (r *Runner) Run(ctx context.Context, tasks []Task) (Summary, error) {
	runID, err := r.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("run id: %w", err)
	}
	start := r.clock.Now()
	logger := r.logger.With(zap.String("run_id", runID.String()))

	batches := split(tasks, r.cfg.BatchSize)
	logger.Debug("run started",
		zap.Int("tasks", len(tasks)),
		zap.Int("batches", len(batches)),
		zap.Int("jobs", r.cfg.Jobs),
	)

	q := memory.NewQueue[work](r.cfg.QueueDepth)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer q.Close()
		for i, b := range batches {
			if err := q.Enqueue(gctx, work{index: i, tasks: b}); err != nil {
				return err
			}
		}
		return nil
	})

	var t tally
	workers := min(r.cfg.Jobs, len(batches))
	for range workers {
		g.Go(func() error {
			return r.work(gctx, runID, q, &t)
		})
	}
	err = g.Wait()

	summary := Summary{
		RunID:   runID,
		Batches: t.batches,
		Items:   t.items,
		Elapsed: r.clock.Now().Sub(start),
	}
	if err != nil {
		logger.Debug("run failed", zap.Error(err), zap.Int("completed_batches", summary.Batches))
		return summary, fmt.Errorf("run %s: %w", runID, err)
	}
	logger.Debug("run finished",
		zap.Int("batches", summary.Batches),
		zap.Int("items", summary.Items),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func (r *Runner) work(ctx context.Context, runID uuid.UUID, q *memory.Queue[work], t *tally) error {
	for {
		w, err := q.Dequeue(ctx)
		if errors.Is(err, memory.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		began := r.clock.Now()
		for _, task := range w.tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := runTask(ctx, task); err != nil {
				return fmt.Errorf("batch %d: %w", w.index, err)
			}
		}
		r.deliver(Batch{
			RunID:    runID,
			Index:    w.index,
			Size:     len(w.tasks),
			Duration: r.clock.Now().Sub(began),
		}, t)
	}
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, rec)
		}
	}()
	return task(ctx)
}

func (r *Runner) deliver(b Batch, t *tally) {
	t.mu.Lock()
	t.batches++
	t.items += b.Size
	t.mu.Unlock()

	r.logger.Debug("batch complete",
		zap.String("run_id", b.RunID.String()),
		zap.Int("batch", b.Index),
		zap.Int("size", b.Size),
		zap.Duration("duration", b.Duration),
	)

	if len(r.callbacks) > 0 {
		r.deliverMu.Lock()
		for _, cb := range r.callbacks {
			cb(b)
		}
		r.deliverMu.Unlock()
	}
	notifyObservers(b)
}

func split(tasks []Task, size int) [][]Task {
	if len(tasks) == 0 {
		return nil
	}
	out := make([][]Task, 0, (len(tasks)+size-1)/size)
	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))
		out = append(out, tasks[start:end])
	}
	return out
}

// Map applies fn to every item on the runner and returns the results in input
// order. It fails with the first error fn returns.
func Map[T, R any](ctx context.Context, r *Runner, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	tasks := make([]Task, len(items))
	for i, item := range items {
		tasks[i] = func(ctx context.Context) error {
			v, err := fn(ctx, item)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		}
	}
	if _, err := r.Run(ctx, tasks); err != nil {
		return nil, err
	}
	return out, nil
}
