package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/batchlog/internal/progress"
)

// PrometheusSink exports batch run progress via Prometheus. It owns all
// collectors for runs started/completed/running and batch/item throughput.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runRuntime    *prometheus.HistogramVec

	batchesDone prometheus.Counter
	itemsDone   prometheus.Counter
	batchItems  prometheus.Histogram

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchlog_runs_started_total",
			Help: "Total runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batchlog_runs_completed_total",
			Help: "Total runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batchlog_runs_running",
			Help: "Current number of running runs.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batchlog_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 1200},
		}, []string{"result"}),
		batchesDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchlog_batches_completed_total",
			Help: "Batches completed across all runs.",
		}),
		itemsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchlog_items_completed_total",
			Help: "Items completed across all runs.",
		}),
		batchItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batchlog_batch_items",
			Help:    "Items per completed batch.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runRuntime,
		s.batchesDone,
		s.itemsDone,
		s.batchItems,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StageBatchDone:
		s.batchesDone.Add(float64(evt.Batches))
		s.itemsDone.Add(float64(evt.Items))
		if evt.Batches == 1 {
			s.batchItems.Observe(float64(evt.Items))
		}
	case progress.StageRunDone:
		s.complete(evt, "success")
	case progress.StageRunError:
		s.complete(evt, "error")
	}
}

func (s *PrometheusSink) complete(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
