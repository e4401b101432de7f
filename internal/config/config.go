// Package config loads and validates batchrun configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/batchlog/internal/logging"
	"github.com/JakeFAU/batchlog/internal/parallel"
	"github.com/JakeFAU/batchlog/internal/progress"
)

// EnvPrefix prefixes environment overrides, e.g. BATCHLOG_PARALLEL_JOBS.
const EnvPrefix = "BATCHLOG"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig   `mapstructure:"logging"`
	Parallel parallel.Config `mapstructure:"parallel"`
	Progress ProgressConfig  `mapstructure:"progress"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	DB       DBConfig        `mapstructure:"db"`
	Output   OutputConfig    `mapstructure:"output"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	Name  string `mapstructure:"name"`
	Level string `mapstructure:"level"`
	// Dir enables the file sink when non-empty.
	Dir string `mapstructure:"dir"`
}

// ProgressConfig tunes the progress hub and the terminal bar.
type ProgressConfig struct {
	progress.Config `mapstructure:",squash"`
	Bar             bool `mapstructure:"bar"`
}

// MetricsConfig controls the operator HTTP endpoint.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string `mapstructure:"addr"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// OutputConfig selects where the run manifest is written.
type OutputConfig struct {
	// URI is gs://bucket/prefix, a local directory, or empty to skip the manifest.
	URI string `mapstructure:"uri"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.name", "batchlog")
	v.SetDefault("logging.level", "debug")
	v.SetDefault("logging.dir", "")
	v.SetDefault("parallel.jobs", 0)
	v.SetDefault("parallel.batch_size", 1)
	v.SetDefault("parallel.queue_depth", 0)
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.max_batch_events", 1000)
	v.SetDefault("progress.max_batch_wait", 500*time.Millisecond)
	v.SetDefault("progress.sink_timeout", 10*time.Second)
	v.SetDefault("progress.bar", true)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("output.uri", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Logging.Name) == "" {
		errs = append(errs, errors.New("logging.name must be set"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if err := c.Parallel.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Progress.BufferSize < 0 || c.Progress.MaxBatchEvents < 0 {
		errs = append(errs, errors.New("progress buffer sizes must be >= 0"))
	}
	if c.Progress.MaxBatchWait < 0 || c.Progress.SinkTimeout < 0 {
		errs = append(errs, errors.New("progress durations must be >= 0"))
	}
	if c.DB.MaxConns < 0 || c.DB.MinConns < 0 {
		errs = append(errs, errors.New("db connection limits must be >= 0"))
	}
	if c.DB.MaxConns > 0 && c.DB.MinConns > c.DB.MaxConns {
		errs = append(errs, errors.New("db.min_conns must be <= db.max_conns"))
	}
	if rest, ok := strings.CutPrefix(c.Output.URI, "gs://"); ok && strings.Trim(rest, "/") == "" {
		errs = append(errs, errors.New("output.uri must name a bucket"))
	}
	return errors.Join(errs...)
}

// LogLevel returns the parsed logging.level. Call it after Validate.
func (c Config) LogLevel() logging.Level {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.DebugLevel
	}
	return level
}
