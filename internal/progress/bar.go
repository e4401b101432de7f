package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// BarOption customizes a Bar.
type BarOption func(*barConfig)

type barConfig struct {
	writer   io.Writer
	width    int
	throttle time.Duration
}

// WithBarWriter sends the bar to w instead of stderr.
func WithBarWriter(w io.Writer) BarOption {
	return func(c *barConfig) {
		if w != nil {
			c.writer = w
		}
	}
}

// WithBarWidth sets the bar width in cells.
func WithBarWidth(width int) BarOption {
	return func(c *barConfig) {
		if width > 0 {
			c.width = width
		}
	}
}

// WithBarThrottle limits how often the bar redraws.
func WithBarThrottle(d time.Duration) BarOption {
	return func(c *barConfig) {
		c.throttle = d
	}
}

// Bar is a terminal progress bar. A non-positive total renders a spinner.
type Bar struct {
	bar   *progressbar.ProgressBar
	known bool

	mu     sync.Mutex
	failed bool
	closed bool
}

// NewBar creates a bar for total items labelled with description.
func NewBar(total int, description string, opts ...BarOption) *Bar {
	cfg := barConfig{writer: os.Stderr, width: 40, throttle: 65 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}
	known := total > 0
	if !known {
		total = -1
	}
	w := cfg.writer
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(cfg.width),
		progressbar.OptionThrottle(cfg.throttle),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
	return &Bar{bar: bar, known: known}
}

// Update advances the bar by n.
func (b *Bar) Update(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	// Overshooting a known total is reported by the bar but harmless.
	_ = b.bar.Add(n)
}

// Describe replaces the label.
func (b *Bar) Describe(description string) {
	b.bar.Describe(description)
}

// Fail leaves the bar at its current position when it closes.
func (b *Bar) Fail(error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed = true
}

// Current returns the number of items counted so far.
func (b *Bar) Current() int64 {
	return b.bar.State().CurrentNum
}

// Close completes the bar, filling it unless the run failed or the total was
// unknown. Later calls do nothing.
func (b *Bar) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.failed || !b.known {
		if err := b.bar.Exit(); err != nil {
			return fmt.Errorf("exit progress bar: %w", err)
		}
		return nil
	}
	if err := b.bar.Finish(); err != nil {
		return fmt.Errorf("finish progress bar: %w", err)
	}
	return nil
}
