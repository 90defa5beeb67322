package observability

import (
	"fmt"
	"time"
)

// Config selects and configures the OTLP exporters.
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP HTTP host:port, e.g. "localhost:4318".
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`

	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64 `mapstructure:"sample_rate"`

	// MetricInterval is the export period, e.g. "15s".
	MetricInterval string `mapstructure:"metric_interval"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.MetricInterval == "" {
		c.MetricInterval = "15s"
	}
}

// Validate checks ranges and durations.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability: sample_rate must be in [0, 1], got %v", c.SampleRate)
	}
	if _, err := time.ParseDuration(c.MetricInterval); err != nil {
		return fmt.Errorf("observability: invalid metric_interval %q: %w", c.MetricInterval, err)
	}
	return nil
}
