package progress

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// steppingClock advances one second per reading.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func stepClock() *steppingClock {
	return &steppingClock{now: time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)}
}

// TestHubIndicatorLifecycle emits start, one event per update, and a final total.
func TestHubIndicatorLifecycle(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	runID := uuid.MustParse("0190f5a4-7e1c-7c3d-9a4e-5b6c7d8e9f20")
	ind := NewHubIndicator(emitter, runID, "hash files", WithTotal(5), WithHubClock(stepClock()))
	require.Equal(t, runID, ind.RunID())

	ind.Update(2)
	ind.Update(3)
	require.NoError(t, ind.Close())
	require.NoError(t, ind.Close())
	ind.Update(1)

	events := emitter.Events()
	require.Len(t, events, 4)
	for _, evt := range events {
		require.NoError(t, evt.Validate())
		require.Equal(t, runID, evt.RunUUID())
	}

	start := events[0]
	require.Equal(t, StageRunStart, start.Stage)
	require.Equal(t, "hash files", start.Name)
	require.EqualValues(t, 5, start.Total)

	require.Equal(t, StageBatchDone, events[1].Stage)
	require.EqualValues(t, 2, events[1].Items)
	require.EqualValues(t, 1, events[1].Batches)

	done := events[3]
	require.Equal(t, StageRunDone, done.Stage)
	require.EqualValues(t, 5, done.Items)
	require.EqualValues(t, 2, done.Batches)
	require.Equal(t, 3*time.Second, done.Dur)
	require.Empty(t, done.Note)
}

// TestHubIndicatorFail turns the terminal event into RUN_ERROR.
func TestHubIndicatorFail(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	ind := NewHubIndicator(emitter, uuid.New(), "job")
	ind.Fail(nil)
	ind.Fail(errors.New("first"))
	ind.Fail(errors.New("second"))
	require.NoError(t, ind.Close())

	events := emitter.Events()
	last := events[len(events)-1]
	require.Equal(t, StageRunError, last.Stage)
	require.Equal(t, "first", last.Note)
}

// TestTeeForwardsAndJoinsErrors reaches every indicator even after a close failure.
func TestTeeForwardsAndJoinsErrors(t *testing.T) {
	t.Parallel()

	a := &Counter{}
	b := &failingCloser{}
	emitter := &recordingEmitter{}
	hub := NewHubIndicator(emitter, uuid.New(), "tee")
	ind := Tee(a, nil, b, hub)

	ind.Update(4)
	ind.(Failer).Fail(errBoom)
	err := ind.Close()
	require.ErrorIs(t, err, errClose)

	require.Equal(t, 4, a.Items())
	require.Equal(t, 4, b.Items())
	require.Equal(t, 1, a.Closed())
	require.Equal(t, 1, b.Closed())

	events := emitter.Events()
	require.Equal(t, StageRunError, events[len(events)-1].Stage)
}

// TestEventValidate rejects malformed events.
func TestEventValidate(t *testing.T) {
	t.Parallel()

	valid := Event{RunID: UUIDToBytes(uuid.New()), TS: time.Now(), Stage: StageBatchDone, Items: 1, Batches: 1}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Event){
		"missing id":     func(e *Event) { e.RunID = [16]byte{} },
		"missing ts":     func(e *Event) { e.TS = time.Time{} },
		"unknown stage":  func(e *Event) { e.Stage = "NOPE" },
		"no batches":     func(e *Event) { e.Batches = 0 },
		"negative items": func(e *Event) { e.Items = -1 },
		"negative dur":   func(e *Event) { e.Dur = -time.Second },
	}
	for name, mutate := range cases {
		evt := valid
		mutate(&evt)
		require.Error(t, evt.Validate(), name)
	}
}
