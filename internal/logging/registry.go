package logging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/batchlog/internal/clock"
	"github.com/JakeFAU/batchlog/internal/clock/system"
)

// fileNameLayout names log files DD-MM-YYYY_HH-MM-SS.log.
const fileNameLayout = "02-01-2006_15-04-05"

var (
	// ErrEmptyName is returned when a logger is requested without a name.
	ErrEmptyName = errors.New("logger name is required")
	// ErrClosed is returned when a file sink is requested after Close.
	ErrClosed = errors.New("logging registry closed")
)

// Option configures a GetLogger call.
type Option func(*options)

type options struct {
	level   Level
	root    bool
	logDir  string
	console io.Writer
}

// WithLevel sets the logger threshold and the level of any sinks attached by
// the call. Defaults to DebugLevel.
func WithLevel(level Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// AsRoot attaches a console sink and disables propagation. Call it once per
// program for the logger that owns the output.
func AsRoot() Option {
	return func(o *options) {
		o.root = true
	}
}

// WithLogDir additionally attaches a file sink writing to a new timestamped
// file in dir. It only applies together with AsRoot.
func WithLogDir(dir string) Option {
	return func(o *options) {
		o.logDir = dir
	}
}

// WithConsole redirects the console sink, which writes to stdout by default.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.console = w
		}
	}
}

// Registry owns name-keyed loggers and the files opened for them.
type Registry struct {
	clock clock.Clock

	mu      sync.Mutex
	loggers map[string]*Logger
	root    *Logger
	files   []openFile
	closed  bool
}

type openFile struct {
	logger *Logger
	sink   zapcore.Core
	file   *os.File
}

// NewRegistry creates an empty registry. A nil clock uses the system clock.
func NewRegistry(clk clock.Clock) *Registry {
	if clk == nil {
		clk = system.New()
	}
	r := &Registry{
		clock:   clk,
		loggers: make(map[string]*Logger),
	}
	r.root = newLogger("", r, clk)
	return r
}

// Root returns the ancestor of every logger in the registry. It has no sinks
// until some are added.
func (r *Registry) Root() *Logger {
	return r.root
}

// GetLogger returns the logger called name, creating it if needed, and sets its
// threshold. Without AsRoot nothing else changes, so call sites can look loggers
// up cheaply. With AsRoot a console sink is attached, propagation is disabled,
// and WithLogDir adds a file sink.
func (r *Registry) GetLogger(name string, opts ...Option) (*Logger, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	o := options{level: DebugLevel, console: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	l := r.lookup(name)
	l.SetLevel(o.level)
	if !o.root {
		return l, nil
	}

	l.AddSink(NewConsoleSink(o.console, o.level))
	l.SetPropagate(false)
	if o.logDir == "" {
		return l, nil
	}

	f, err := r.createLogFile(l, o.logDir)
	if err != nil {
		return nil, err
	}
	sink := NewFileSink(f, o.level)
	if err := r.track(l, sink, f); err != nil {
		return nil, err
	}
	l.AddSink(sink)
	return l, nil
}

func (r *Registry) lookup(name string) *Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loggers[name]
	if !ok {
		l = newLogger(name, r, r.clock)
		r.loggers[name] = l
	}
	return l
}

// parentOf resolves the nearest existing dotted-name ancestor, falling back to
// the root logger.
func (r *Registry) parentOf(name string) *Logger {
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := strings.LastIndexByte(name, '.'); i > 0; i = strings.LastIndexByte(name, '.') {
		name = name[:i]
		if l, ok := r.loggers[name]; ok {
			return l
		}
	}
	return r.root
}

func (r *Registry) createLogFile(l *Logger, dir string) (*os.File, error) {
	if _, err := os.Stat(dir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat log dir: %w", err)
		}
		l.Infof("Logging directory %s does not exist and will be created", dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	path := filepath.Join(dir, LogFileName(r.clock.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func (r *Registry) track(l *Logger, sink zapcore.Core, f *os.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		_ = f.Close()
		return ErrClosed
	}
	r.files = append(r.files, openFile{logger: l, sink: sink, file: f})
	return nil
}

// Close detaches every file sink, flushes it and closes its file. Console sinks stay in
// place. Subsequent calls are no-ops.
func (r *Registry) Close() error {
	r.mu.Lock()
	files := r.files
	r.files = nil
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for _, of := range files {
		of.logger.removeSink(of.sink)
		_ = of.sink.Sync()
		if err := of.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", of.file.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogFileName returns the file name used for a log opened at t.
func LogFileName(t time.Time) string {
	return t.Format(fileNameLayout) + ".log"
}

var std = NewRegistry(nil)

// GetLogger looks up or configures a logger in the process-wide registry.
func GetLogger(name string, opts ...Option) (*Logger, error) {
	return std.GetLogger(name, opts...)
}

// Root returns the process-wide root logger.
func Root() *Logger {
	return std.Root()
}

// Shutdown closes the log files opened through the process-wide registry.
// Defer it from main.
func Shutdown() error {
	return std.Close()
}
