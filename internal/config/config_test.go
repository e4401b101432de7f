package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/batchlog/internal/logging"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  name: hasher
  level: warning
  dir: /var/log/batchlog
parallel:
  jobs: 6
  batch_size: 8
  queue_depth: 32
progress:
  buffer_size: 128
  max_batch_events: 16
  max_batch_wait: 250ms
  sink_timeout: 2s
  bar: false
metrics:
  addr: ":9100"
db:
  dsn: postgres://localhost/batchlog
  max_conns: 8
  min_conns: 2
  max_conn_lifetime: 30m
output:
  uri: gs://bucket/manifests
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Name != "hasher" || cfg.Logging.Dir != "/var/log/batchlog" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.LogLevel() != logging.WarningLevel {
		t.Fatalf("expected warning level, got %v", cfg.LogLevel())
	}
	if cfg.Parallel.Jobs != 6 || cfg.Parallel.BatchSize != 8 || cfg.Parallel.QueueDepth != 32 {
		t.Fatalf("unexpected parallel config: %+v", cfg.Parallel)
	}
	if cfg.Progress.BufferSize != 128 || cfg.Progress.MaxBatchEvents != 16 {
		t.Fatalf("unexpected progress sizes: %+v", cfg.Progress)
	}
	if cfg.Progress.MaxBatchWait != 250*time.Millisecond || cfg.Progress.SinkTimeout != 2*time.Second {
		t.Fatalf("unexpected progress durations: %+v", cfg.Progress)
	}
	if cfg.Progress.Bar {
		t.Fatalf("expected bar disabled")
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("unexpected metrics addr %q", cfg.Metrics.Addr)
	}
	if cfg.DB.DSN != "postgres://localhost/batchlog" || cfg.DB.MaxConns != 8 || cfg.DB.MinConns != 2 {
		t.Fatalf("unexpected db config: %+v", cfg.DB)
	}
	if cfg.DB.MaxConnLifetime != 30*time.Minute {
		t.Fatalf("unexpected db lifetime %v", cfg.DB.MaxConnLifetime)
	}
	if cfg.Output.URI != "gs://bucket/manifests" {
		t.Fatalf("unexpected output uri %q", cfg.Output.URI)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Name != "batchlog" || cfg.LogLevel() != logging.DebugLevel {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Parallel.BatchSize != 1 {
		t.Fatalf("expected batch_size default 1, got %d", cfg.Parallel.BatchSize)
	}
	if !cfg.Progress.Bar || cfg.Progress.BufferSize != 4096 {
		t.Fatalf("unexpected progress defaults: %+v", cfg.Progress)
	}
	if cfg.Progress.MaxBatchWait != 500*time.Millisecond {
		t.Fatalf("unexpected max_batch_wait default %v", cfg.Progress.MaxBatchWait)
	}
	if cfg.DB.DSN != "" || cfg.Output.URI != "" || cfg.Metrics.Addr != "" {
		t.Fatalf("expected optional outputs disabled: %+v", cfg)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BATCHLOG_PARALLEL_JOBS", "3")
	t.Setenv("BATCHLOG_LOGGING_LEVEL", "error")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Parallel.Jobs != 3 {
		t.Fatalf("expected env override for jobs, got %d", cfg.Parallel.Jobs)
	}
	if cfg.LogLevel() != logging.ErrorLevel {
		t.Fatalf("expected env override for level, got %v", cfg.LogLevel())
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Logging: LoggingConfig{Name: "batchlog", Level: "info"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty name", func(c *Config) { c.Logging.Name = " " }, "logging.name"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"negative jobs", func(c *Config) { c.Parallel.Jobs = -1 }, "parallel.jobs"},
		{"negative wait", func(c *Config) { c.Progress.MaxBatchWait = -time.Second }, "progress durations"},
		{"min above max", func(c *Config) { c.DB.MaxConns, c.DB.MinConns = 1, 2 }, "db.min_conns"},
		{"bucketless uri", func(c *Config) { c.Output.URI = "gs://" }, "output.uri"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
