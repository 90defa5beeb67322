package database

import (
	"context"
	"fmt"

	"github.com/kbukum/orchestrator/component"
	"github.com/kbukum/orchestrator/logger"
)

// Component manages the database connection's lifecycle.
type Component struct {
	cfg    Config
	db     *DB
	log    *logger.Logger
	models []any
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a database component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("database")}
}

// WithAutoMigrate registers models migrated on Start when auto_migrate is set.
func (c *Component) WithAutoMigrate(models ...any) *Component {
	c.models = append(c.models, models...)
	return c
}

// DB returns the connection, or nil if disabled or not started.
func (c *Component) DB() *DB { return c.db }

func (c *Component) Name() string { return "database" }

func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.log.Info("database is disabled")
		return nil
	}
	db, err := Open(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("database start: %w", err)
	}
	c.db = db
	if c.cfg.AutoMigrate && len(c.models) > 0 {
		if err := db.AutoMigrate(c.models...); err != nil {
			return fmt.Errorf("database auto-migrate: %w", err)
		}
	}
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case !c.cfg.Enabled:
		h.Message = "disabled"
	case c.db == nil:
		h.Status, h.Message = component.StatusUnhealthy, "not started"
	default:
		if err := c.db.PingContext(ctx); err != nil {
			h.Status, h.Message = component.StatusUnhealthy, fmt.Sprintf("ping failed: %v", err)
		}
	}
	return h
}

func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("driver=%s pool=%d/%d", c.cfg.Driver, c.cfg.MaxOpenConns, c.cfg.MaxIdleConns)
	if c.cfg.AutoMigrate {
		details += " auto-migrate=on"
	}
	return component.Description{Name: "Database", Type: "database", Details: details}
}
