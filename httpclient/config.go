package httpclient

import (
	"fmt"
	"time"
)

const defaultTimeout = 5 * time.Minute

// Config configures the HTTP client.
type Config struct {
	// BaseURL is prepended to relative request URLs.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout is the transport-level ceiling. Per-call deadlines come from ctx.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// UserAgent is sent unless a request sets its own.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// InsecureSkipVerify disables TLS certificate checks. Development only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`

	// RateLimit throttles outbound calls. Nil or zero rate disables it.
	RateLimit *RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig is a token bucket: Rate calls per second with Burst headroom.
type RateLimitConfig struct {
	Rate  float64 `yaml:"rate" mapstructure:"rate"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = "orchestrator"
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.RateLimit != nil && (c.RateLimit.Rate < 0 || c.RateLimit.Burst < 0) {
		return fmt.Errorf("httpclient: rate_limit values must not be negative")
	}
	return nil
}
