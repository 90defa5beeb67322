package storage

import (
	"context"
	"fmt"

	"github.com/kbukum/orchestrator/component"
	"github.com/kbukum/orchestrator/logger"
)

// Component manages the archive backend's lifecycle.
type Component struct {
	cfg     Config
	storage Storage
	log     *logger.Logger
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a storage component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("storage")}
}

// Storage returns the backend, or nil when disabled or not started.
func (c *Component) Storage() Storage { return c.storage }

func (c *Component) Name() string { return "storage" }

func (c *Component) Start(_ context.Context) error {
	if !c.cfg.Enabled {
		c.log.Info("storage is disabled, run archiving unavailable")
		return nil
	}
	s, err := New(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("storage start: %w", err)
	}
	c.storage = s
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	c.storage = nil
	return nil
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case !c.cfg.Enabled:
		h.Message = "disabled"
	case c.storage == nil:
		h.Status, h.Message = component.StatusUnhealthy, "not started"
	default:
		if _, err := c.storage.URL(ctx, ".health"); err != nil {
			h.Status, h.Message = component.StatusUnhealthy, fmt.Sprintf("probe failed: %v", err)
		}
	}
	return h
}

func (c *Component) Describe() component.Description {
	details := "provider=" + c.cfg.Provider
	switch c.cfg.Provider {
	case ProviderS3:
		details += " bucket=" + c.cfg.Bucket
	case ProviderLocal:
		details += " path=" + c.cfg.BasePath
	}
	return component.Description{Name: "Archive", Type: "storage", Details: details}
}
