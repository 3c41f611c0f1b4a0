// Package config loads tsvd's configuration from a YAML file and the
// environment. Environment variables override the file:
//
//	TSVD_CONFIG     path of the YAML file (optional)
//	TSVD_LISTEN     listen address (default ":8090")
//	TSVD_BUCKETS    keyspace bucket count
//	TSVD_POOL_MIN   min workers of the job pool
//	TSVD_POOL_MAX   max workers of the job pool
//	TSVD_POOL_IDLE  idle timeout of the job pool, e.g. "30s"
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/threadkit/internal/keyspace"
	"github.com/dreamware/threadkit/internal/pool"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the daemon configuration.
type Config struct {
	Listen   string    `yaml:"listen"`
	Buckets  int       `yaml:"buckets"`
	Pool     Pool      `yaml:"pool"`
	Bindings []Binding `yaml:"bindings"`
}

// Pool configures the job pool that runs asynchronous mutations.
type Pool struct {
	Min  int           `yaml:"min"`
	Max  int           `yaml:"max"`
	Idle time.Duration `yaml:"idle"`
}

// Binding attaches an array to a persistent store at startup.
type Binding struct {
	Array string `yaml:"array"`
	Store string `yaml:"store"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:  ":8090",
		Buckets: keyspace.DefaultBuckets,
		Pool:    Pool{Min: 1, Max: pool.DefaultMax, Idle: 30 * time.Second},
	}
}

// PoolConfig converts the job pool section to a pool.Config.
func (c *Config) PoolConfig() pool.Config {
	return pool.Config{Min: c.Pool.Min, Max: c.Pool.Max, IdleTimeout: c.Pool.Idle}
}

// FromEnv loads the file named by TSVD_CONFIG, if set, and applies the
// environment overrides.
func FromEnv() (*Config, error) {
	return Load(os.Getenv("TSVD_CONFIG"), os.Getenv)
}

// Load reads path (skipped when empty) over the defaults, then applies
// overrides looked up through getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("TSVD_LISTEN"); v != "" {
		c.Listen = v
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"TSVD_BUCKETS", &c.Buckets},
		{"TSVD_POOL_MIN", &c.Pool.Min},
		{"TSVD_POOL_MAX", &c.Pool.Max},
	}
	for _, e := range ints {
		v := getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, e.key, v)
		}
		*e.dst = n
	}
	if v := getenv("TSVD_POOL_IDLE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: TSVD_POOL_IDLE=%q: %v", ErrInvalid, v, err)
		}
		c.Pool.Idle = d
	}
	return nil
}

// Validate checks bounds and binding specs.
func (c *Config) Validate() error {
	switch {
	case c.Listen == "":
		return fmt.Errorf("%w: listen address is empty", ErrInvalid)
	case c.Buckets < 1:
		return fmt.Errorf("%w: buckets must be positive, got %d", ErrInvalid, c.Buckets)
	case c.Pool.Min < 0 || c.Pool.Max < 1 || c.Pool.Min > c.Pool.Max:
		return fmt.Errorf("%w: pool bounds min=%d max=%d", ErrInvalid, c.Pool.Min, c.Pool.Max)
	case c.Pool.Idle < 0:
		return fmt.Errorf("%w: negative pool idle timeout", ErrInvalid)
	}
	seen := make(map[string]bool)
	for _, b := range c.Bindings {
		if b.Array == "" || b.Store == "" {
			return fmt.Errorf("%w: binding needs array and store", ErrInvalid)
		}
		if seen[b.Store] {
			return fmt.Errorf("%w: store %s bound twice", ErrInvalid, b.Store)
		}
		seen[b.Store] = true
	}
	return nil
}
