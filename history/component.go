package history

import (
	"context"
	"fmt"

	"github.com/kbukum/orchestrator/component"
)

// Component ties the history backend into the application lifecycle.
// Register it before the executor so it stops after runs have drained; on
// Stop it closes the backend when the backend is closable.
type Component struct {
	history *History
	kind    string
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent wraps h. kind names the backend for the startup summary.
func NewComponent(h *History, kind string) *Component {
	return &Component{history: h, kind: kind}
}

// History returns the wrapped service.
func (c *Component) History() *History { return c.history }

func (c *Component) Name() string { return "history" }

func (c *Component) Start(context.Context) error { return nil }

func (c *Component) Stop(ctx context.Context) error {
	closer, ok := c.history.backend.(interface{ Close(context.Context) error })
	if !ok {
		return nil
	}
	if err := closer.Close(ctx); err != nil {
		return fmt.Errorf("close history backend: %w", err)
	}
	return nil
}

func (c *Component) Health(context.Context) component.Health {
	c.history.mu.Lock()
	open := len(c.history.open)
	c.history.mu.Unlock()
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d runs open", open),
	}
}

func (c *Component) Describe() component.Description {
	details := "backend=" + c.kind
	if _, ok := c.history.backend.(*PublishingBackend); ok {
		details += " publish=kafka"
	}
	return component.Description{Name: "History", Type: "store", Details: details}
}
