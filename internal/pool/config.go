package pool

import (
	"errors"
	"fmt"
	"time"

	"github.com/dreamware/threadkit/internal/thread"
)

var (
	// ErrPoolNotFound is returned when a name does not resolve to a pool.
	ErrPoolNotFound = errors.New("pool: no such pool")

	// ErrPoolClosed is returned by operations on a pool being torn down.
	ErrPoolClosed = errors.New("pool: pool is closed")

	// ErrJobNotCompleted is returned by Get for a job still queued or
	// running.
	ErrJobNotCompleted = errors.New("pool: job not completed")

	// ErrNoSuchJob is returned by Get for an unknown or collected job.
	ErrNoSuchJob = errors.New("pool: no such job")

	// ErrBadConfig is returned by Create for invalid bounds.
	ErrBadConfig = errors.New("pool: invalid config")
)

// DefaultMax is the worker bound used when Config.Max is zero.
const DefaultMax = 4

// Config describes a pool.
type Config struct {
	// Min workers are started at creation and never retired.
	Min int `yaml:"min"`

	// Max bounds the number of live workers.
	Max int `yaml:"max"`

	// IdleTimeout retires workers above Min that stayed idle this long.
	// Zero keeps them forever.
	IdleTimeout time.Duration `yaml:"idle"`

	// Init runs on each new worker before it takes jobs. A failure stops
	// the worker and is returned to whoever started it.
	Init thread.Script `yaml:"-"`

	// Exit runs on each worker as it retires or the pool is torn down.
	Exit thread.Script `yaml:"-"`
}

func (c *Config) validate() error {
	if c.Max == 0 {
		c.Max = DefaultMax
	}
	switch {
	case c.Min < 0:
		return fmt.Errorf("%w: min %d < 0", ErrBadConfig, c.Min)
	case c.Max < 1:
		return fmt.Errorf("%w: max %d < 1", ErrBadConfig, c.Max)
	case c.Min > c.Max:
		return fmt.Errorf("%w: min %d > max %d", ErrBadConfig, c.Min, c.Max)
	case c.IdleTimeout < 0:
		return fmt.Errorf("%w: negative idle timeout", ErrBadConfig)
	}
	return nil
}
