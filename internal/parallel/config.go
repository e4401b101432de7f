package parallel

import (
	"errors"
	"runtime"
)

// Config sizes a Runner. Zero values pick defaults.
type Config struct {
	// Jobs is the number of concurrent workers. Defaults to GOMAXPROCS.
	Jobs int `mapstructure:"jobs"`
	// BatchSize is the number of tasks a worker runs before reporting. Defaults to 1.
	BatchSize int `mapstructure:"batch_size"`
	// QueueDepth bounds the batches waiting for a worker. Defaults to Jobs*2.
	QueueDepth int `mapstructure:"queue_depth"`
}

// Validate rejects negative sizes.
func (c Config) Validate() error {
	var errs []error
	if c.Jobs < 0 {
		errs = append(errs, errors.New("parallel.jobs must be >= 0"))
	}
	if c.BatchSize < 0 {
		errs = append(errs, errors.New("parallel.batch_size must be >= 0"))
	}
	if c.QueueDepth < 0 {
		errs = append(errs, errors.New("parallel.queue_depth must be >= 0"))
	}
	return errors.Join(errs...)
}

func (c Config) withDefaults() Config {
	if c.Jobs == 0 {
		c.Jobs = runtime.GOMAXPROCS(0)
	}
	if c.BatchSize == 0 {
		c.BatchSize = 1
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = c.Jobs * 2
	}
	return c
}
