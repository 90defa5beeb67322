package scheduler

import (
	"fmt"
	"time"
)

const defaultTickInterval = time.Second

// Config controls the scheduling loop.
type Config struct {
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.TickInterval < 10*time.Millisecond {
		return fmt.Errorf("scheduler: tick_interval must be at least 10ms")
	}
	return nil
}
