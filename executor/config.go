package executor

import (
	"fmt"
	"time"
)

const (
	defaultMaxConcurrency = 16
	defaultTimeout        = time.Minute
)

// Config bounds run execution.
type Config struct {
	// MaxConcurrency caps HTTP attempts in flight across all runs.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency" validate:"gte=0"`
	// DefaultTimeout applies to activities that set no timeout.
	DefaultTimeout time.Duration `yaml:"default_timeout" mapstructure:"default_timeout" validate:"gte=0"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("executor: max_concurrency must be at least 1")
	}
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("executor: default_timeout must be positive")
	}
	return nil
}
