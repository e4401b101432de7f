package progress

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/batchlog/internal/clock"
	"github.com/JakeFAU/batchlog/internal/clock/system"
)

// Indicator is advanced by completed work and closed when the work ends.
// Implementations must tolerate Update calls from any goroutine.
type Indicator interface {
	Update(n int)
	Close() error
}

// Failer is implemented by indicators that render failed runs differently.
// Report calls Fail before Close when the reported work fails.
type Failer interface {
	Fail(err error)
}

type tee []Indicator

// Tee returns an Indicator that forwards to every non-nil indicator in order.
func Tee(indicators ...Indicator) Indicator {
	out := make(tee, 0, len(indicators))
	for _, ind := range indicators {
		if ind != nil {
			out = append(out, ind)
		}
	}
	return out
}

func (t tee) Update(n int) {
	for _, ind := range t {
		ind.Update(n)
	}
}

func (t tee) Fail(err error) {
	for _, ind := range t {
		if f, ok := ind.(Failer); ok {
			f.Fail(err)
		}
	}
}

// Close closes every indicator, even after a failure, and joins the errors.
func (t tee) Close() error {
	var errs []error
	for _, ind := range t {
		if err := ind.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HubOption customizes a HubIndicator.
type HubOption func(*HubIndicator)

// WithTotal records the expected item count on the RUN_START event.
func WithTotal(total int) HubOption {
	return func(h *HubIndicator) {
		if total > 0 {
			h.total = int64(total)
		}
	}
}

// WithHubClock overrides the time source for event timestamps.
func WithHubClock(clk clock.Clock) HubOption {
	return func(h *HubIndicator) {
		if clk != nil {
			h.clock = clk
		}
	}
}

// HubIndicator turns indicator calls into Events: RUN_START on creation,
// BATCH_DONE for every update, and RUN_DONE or RUN_ERROR on close.
type HubIndicator struct {
	emitter Emitter
	clock   clock.Clock
	runID   [16]byte
	name    string
	total   int64
	started time.Time

	mu      sync.Mutex
	items   int64
	batches int64
	failure error
	closed  bool
}

// NewHubIndicator emits RUN_START for runID and returns the indicator.
func NewHubIndicator(emitter Emitter, runID uuid.UUID, name string, opts ...HubOption) *HubIndicator {
	h := &HubIndicator{
		emitter: emitter,
		clock:   system.New(),
		runID:   UUIDToBytes(runID),
		name:    name,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.started = h.clock.Now()
	h.emit(Event{
		RunID: h.runID,
		TS:    h.started,
		Stage: StageRunStart,
		Name:  name,
		Total: h.total,
	})
	return h
}

// RunID returns the identifier carried by every event.
func (h *HubIndicator) RunID() uuid.UUID {
	return uuid.UUID(h.runID)
}

// Update emits a BATCH_DONE event advancing the run by n items.
func (h *HubIndicator) Update(n int) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.items += int64(n)
	h.batches++
	h.mu.Unlock()

	h.emit(Event{
		RunID:   h.runID,
		TS:      h.clock.Now(),
		Stage:   StageBatchDone,
		Items:   int64(n),
		Batches: 1,
	})
}

// Fail marks the run as failed; Close then emits RUN_ERROR carrying err.
func (h *HubIndicator) Fail(err error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failure == nil {
		h.failure = err
	}
}

// Close emits the terminal event with the accumulated totals. Later calls do
// nothing.
func (h *HubIndicator) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	evt := Event{
		RunID:   h.runID,
		Stage:   StageRunDone,
		Items:   h.items,
		Batches: h.batches,
	}
	if h.failure != nil {
		evt.Stage = StageRunError
		evt.Note = h.failure.Error()
	}
	h.mu.Unlock()

	evt.TS = h.clock.Now()
	evt.Dur = max(evt.TS.Sub(h.started), 0)
	h.emit(evt)
	return nil
}

func (h *HubIndicator) emit(evt Event) {
	if h.emitter != nil {
		h.emitter.Emit(evt)
	}
}

// Counter is an in-memory Indicator that only counts. It is useful when no
// terminal is attached.
type Counter struct {
	mu      sync.Mutex
	items   int
	updates int
	closed  int
}

// Update adds n items.
func (c *Counter) Update(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items += n
	c.updates++
}

// Close records the close.
func (c *Counter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

// Items returns the total advanced so far.
func (c *Counter) Items() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

// Updates returns how many times Update was called.
func (c *Counter) Updates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

// Closed returns how many times Close was called.
func (c *Counter) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
