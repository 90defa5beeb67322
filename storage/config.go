package storage

import (
	"errors"
	"fmt"
)

// Providers.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// Defaults.
const (
	DefaultProvider = ProviderLocal
	DefaultBasePath = "./data/archive"
	DefaultRegion   = "us-east-1"
)

// Config selects and configures the archive backend.
type Config struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Provider string `mapstructure:"provider" json:"provider"`

	// BasePath is the root directory of the local provider.
	BasePath string `mapstructure:"base_path" json:"base_path"`

	// S3 (or S3-compatible, e.g. MinIO) settings.
	Bucket         string `mapstructure:"bucket" json:"bucket"`
	Region         string `mapstructure:"region" json:"region"`
	Endpoint       string `mapstructure:"endpoint" json:"endpoint"`
	AccessKey      string `mapstructure:"access_key" json:"-"`
	SecretKey      string `mapstructure:"secret_key" json:"-"`
	ForcePathStyle bool   `mapstructure:"force_path_style" json:"force_path_style"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}

// Validate checks the settings required by the selected provider.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return errors.New("storage: base_path is required for local provider")
		}
	case ProviderS3:
		var errs []error
		if c.Bucket == "" {
			errs = append(errs, errors.New("bucket is required"))
		}
		if c.Region == "" {
			errs = append(errs, errors.New("region is required"))
		}
		if (c.AccessKey == "") != (c.SecretKey == "") {
			errs = append(errs, errors.New("access_key and secret_key must be set together"))
		}
		if len(errs) > 0 {
			return fmt.Errorf("storage: invalid s3 config: %w", errors.Join(errs...))
		}
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	return nil
}
