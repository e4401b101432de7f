// Package logging provides named, leveled loggers built on zap.
//
// Loggers live in a Registry keyed by name. A logger configured with AsRoot gets
// a colourised console sink and, when WithLogDir is given, a plain-text sink
// writing to a timestamped file in that directory. Records that pass a logger's
// threshold are written to its own sinks and, while propagation is enabled, to
// the sinks of its dotted-name ancestors up to the registry's root logger.
package logging

import (
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/batchlog/internal/clock"
)

// rootName is how the unnamed root logger labels its records.
const rootName = "root"

// Logger is a named logger owning zero or more sinks.
type Logger struct {
	name     string
	registry *Registry
	level    zap.AtomicLevel
	zap      *zap.Logger
	sugar    *zap.SugaredLogger

	mu        sync.RWMutex
	sinks     []zapcore.Core
	propagate bool
}

func newLogger(name string, registry *Registry, clk clock.Clock) *Logger {
	l := &Logger{
		name:      name,
		registry:  registry,
		level:     zap.NewAtomicLevelAt(zapcore.DebugLevel),
		propagate: true,
	}
	display := name
	if display == "" {
		display = rootName
	}
	l.zap = zap.New(&dispatchCore{logger: l}, zap.WithClock(zapClock{clk})).Named(display)
	l.sugar = l.zap.Sugar()
	return l
}

// Name returns the registry key of the logger; the root logger's name is empty.
func (l *Logger) Name() string {
	return l.name
}

// Level returns the current severity threshold.
func (l *Logger) Level() Level {
	return Level(l.level.Level())
}

// SetLevel changes the severity threshold.
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zap())
}

// Propagate reports whether records also flow to ancestor loggers.
func (l *Logger) Propagate() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.propagate
}

// SetPropagate toggles forwarding to ancestor loggers.
func (l *Logger) SetPropagate(propagate bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.propagate = propagate
}

// AddSink attaches a core. Sinks filter by their own level in addition to the
// logger threshold.
func (l *Logger) AddSink(sink zapcore.Core) {
	if sink == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

// Sinks returns the number of attached sinks.
func (l *Logger) Sinks() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sinks)
}

func (l *Logger) removeSink(sink zapcore.Core) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.sinks {
		if s == sink {
			l.sinks = append(l.sinks[:i:i], l.sinks[i+1:]...)
			return
		}
	}
}

func (l *Logger) snapshot() ([]zapcore.Core, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]zapcore.Core(nil), l.sinks...), l.propagate
}

// Zap exposes the logger as a *zap.Logger for components that take one.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Sugar exposes the logger as a *zap.SugaredLogger.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// Sync flushes every sink attached to this logger.
func (l *Logger) Sync() error {
	sinks, _ := l.snapshot()
	var errs []error
	for _, s := range sinks {
		if err := s.Sync(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Debug logs at DEBUG.
func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }

// Info logs at INFO.
func (l *Logger) Info(msg string, fields ...zap.Field) { l.zap.Info(msg, fields...) }

// Warning logs at WARNING.
func (l *Logger) Warning(msg string, fields ...zap.Field) { l.zap.Warn(msg, fields...) }

// Error logs at ERROR.
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }

// Critical logs at CRITICAL. It never panics or exits.
func (l *Logger) Critical(msg string, fields ...zap.Field) { l.zap.DPanic(msg, fields...) }

// Debugf logs a formatted message at DEBUG.
func (l *Logger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }

// Infof logs a formatted message at INFO.
func (l *Logger) Infof(format string, args ...any) { l.sugar.Infof(format, args...) }

// Warningf logs a formatted message at WARNING.
func (l *Logger) Warningf(format string, args ...any) { l.sugar.Warnf(format, args...) }

// Errorf logs a formatted message at ERROR.
func (l *Logger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

// Criticalf logs a formatted message at CRITICAL.
func (l *Logger) Criticalf(format string, args ...any) { l.sugar.DPanicf(format, args...) }

// dispatch writes an entry to this logger's sinks and then walks up the
// ancestor chain while propagation is enabled. Ancestor thresholds are not
// consulted; only sink levels are.
func (l *Logger) dispatch(ent zapcore.Entry, fields []zapcore.Field) error {
	var errs []error
	for cur := l; cur != nil; {
		sinks, propagate := cur.snapshot()
		for _, s := range sinks {
			if !s.Enabled(ent.Level) {
				continue
			}
			if err := s.Write(ent, fields); err != nil {
				errs = append(errs, err)
			}
		}
		if !propagate || cur.registry == nil {
			break
		}
		cur = cur.registry.parentOf(cur.name)
	}
	return errors.Join(errs...)
}

// dispatchCore adapts a Logger to zapcore.Core so the zap front-end drives it.
type dispatchCore struct {
	logger *Logger
	fields []zapcore.Field
}

func (c *dispatchCore) Enabled(lvl zapcore.Level) bool {
	return c.logger.level.Enabled(lvl)
}

func (c *dispatchCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &dispatchCore{logger: c.logger, fields: merged}
}

func (c *dispatchCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *dispatchCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if len(c.fields) > 0 {
		fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	}
	return c.logger.dispatch(ent, fields)
}

func (c *dispatchCore) Sync() error {
	return c.logger.Sync()
}

// NewConsoleSink builds the colourised sink used by root loggers.
func NewConsoleSink(w io.Writer, level Level) zapcore.Core {
	return zapcore.NewCore(newRecordEncoder(consoleStyle), zapcore.Lock(zapcore.AddSync(w)), level)
}

// NewFileSink builds the plain-text sink used for log files.
func NewFileSink(w io.Writer, level Level) zapcore.Core {
	return zapcore.NewCore(newRecordEncoder(fileStyle), zapcore.Lock(zapcore.AddSync(w)), level)
}

// zapClock lets a clock.Clock stamp zap entries.
type zapClock struct {
	clock.Clock
}

func (zapClock) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}
