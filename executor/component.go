package executor

import (
	"context"
	"fmt"

	"github.com/kbukum/orchestrator/component"
)

// Component ties an Executor into the application lifecycle. Stopping it
// shuts the executor down.
type Component struct {
	exec *Executor
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent wraps e.
func NewComponent(e *Executor) *Component { return &Component{exec: e} }

// Executor returns the wrapped executor.
func (c *Component) Executor() *Executor { return c.exec }

func (c *Component) Name() string { return "executor" }

func (c *Component) Start(context.Context) error { return nil }

func (c *Component) Stop(ctx context.Context) error { return c.exec.Shutdown(ctx) }

func (c *Component) Health(_ context.Context) component.Health {
	e := c.exec
	h := component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d runs active, %d/%d slots in use", len(e.Active()), e.bulkhead.InUse(), e.bulkhead.MaxConcurrent()),
		Details: map[string]any{
			"active_runs":     len(e.Active()),
			"slots_in_use":    e.bulkhead.InUse(),
			"max_concurrency": e.bulkhead.MaxConcurrent(),
		},
	}
	if e.isClosing() {
		h.Status = component.StatusDegraded
		h.Message = "shutting down"
	}
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Executor",
		Type:    "runs",
		Details: fmt.Sprintf("max_concurrency=%d default_timeout=%s", c.exec.cfg.MaxConcurrency, c.exec.cfg.DefaultTimeout),
	}
}
