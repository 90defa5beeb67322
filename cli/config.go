package cli

import (
	"errors"
	"fmt"

	"github.com/kbukum/orchestrator/config"
	"github.com/kbukum/orchestrator/database"
	"github.com/kbukum/orchestrator/executor"
	"github.com/kbukum/orchestrator/history"
	"github.com/kbukum/orchestrator/httpclient"
	"github.com/kbukum/orchestrator/kafka"
	"github.com/kbukum/orchestrator/observability"
	"github.com/kbukum/orchestrator/redis"
	"github.com/kbukum/orchestrator/scheduler"
	"github.com/kbukum/orchestrator/server"
	"github.com/kbukum/orchestrator/storage"
	"github.com/kbukum/orchestrator/validation"
)

// History backends.
const (
	HistoryMemory   = "memory"
	HistoryDatabase = "database"
)

// DefaultDefinitionsPath is searched when no definition paths are configured.
const DefaultDefinitionsPath = "./definitions"

// Config is the orchestrator process configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Definitions   DefinitionsConfig    `yaml:"definitions" mapstructure:"definitions"`
	Scheduler     scheduler.Config     `yaml:"scheduler" mapstructure:"scheduler"`
	Executor      executor.Config      `yaml:"executor" mapstructure:"executor"`
	Collaborator  httpclient.Config    `yaml:"collaborator" mapstructure:"collaborator"`
	History       HistoryConfig        `yaml:"history" mapstructure:"history"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Kafka         kafka.Config         `yaml:"kafka" mapstructure:"kafka"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// DefinitionsConfig lists the YAML and HCL files or directories to load.
type DefinitionsConfig struct {
	Paths []string `yaml:"paths" mapstructure:"paths" validate:"dive,required"`
}

// HistoryConfig selects the run history backend.
type HistoryConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend" validate:"oneof=memory database"`
	// Publish streams every history event to Kafka.
	Publish   bool `yaml:"publish" mapstructure:"publish"`
	QueueSize int  `yaml:"queue_size" mapstructure:"queue_size" validate:"gte=0"`
}

// ApplyDefaults fills zero values in every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if len(c.Definitions.Paths) == 0 {
		c.Definitions.Paths = []string{DefaultDefinitionsPath}
	}
	if c.History.Backend == "" {
		c.History.Backend = HistoryMemory
	}
	if c.History.QueueSize == 0 {
		c.History.QueueSize = history.DefaultPublishQueue
	}
	c.Scheduler.ApplyDefaults()
	c.Executor.ApplyDefaults()
	c.Collaborator.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Kafka.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section and the constraints between them.
func (c *Config) Validate() error {
	errs := []error{
		c.ServiceConfig.Validate(),
		validation.Validate(c.Definitions),
		validation.Validate(c.History),
		c.Scheduler.Validate(),
		c.Executor.Validate(),
		c.Collaborator.Validate(),
		c.Database.Validate(),
		c.Redis.Validate(),
		c.Kafka.Validate(),
		c.Server.Validate(),
		c.Observability.Validate(),
	}
	if c.Storage.Enabled {
		errs = append(errs, c.Storage.Validate())
	}
	if c.History.Backend == HistoryDatabase && !c.Database.Enabled {
		errs = append(errs, fmt.Errorf("history.backend %q requires database.enabled", HistoryDatabase))
	}
	if c.History.Publish && !c.Kafka.Enabled {
		errs = append(errs, errors.New("history.publish requires kafka.enabled"))
	}
	return errors.Join(errs...)
}
