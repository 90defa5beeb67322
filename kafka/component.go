package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/orchestrator/component"
	"github.com/kbukum/orchestrator/logger"
)

// Producer is the part of the history producer the component manages.
type Producer interface {
	Close() error
	Metrics() WriterMetrics
}

// Component owns the producer's lifecycle and probes broker health.
type Component struct {
	cfg      Config
	log      *logger.Logger
	mu       sync.Mutex
	producer Producer
	running  bool
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a Kafka component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("kafka")}
}

// Config returns the effective configuration.
func (c *Component) Config() Config { return c.cfg }

// SetProducer hands the producer to the component; call before Start.
func (c *Component) SetProducer(p Producer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.producer = p
}

func (c *Component) Name() string { return "kafka" }

func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cfg.Enabled {
		c.log.Info("kafka is disabled, history events will not be published")
		return nil
	}
	c.running = true
	c.log.Info("kafka component started", logger.Fields("brokers", c.cfg.Brokers, "topic", c.cfg.Topic))
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	c.running = false
	if c.producer == nil {
		return nil
	}
	err := c.producer.Close()
	c.producer = nil
	return err
}

// Health dials the first broker and reads cluster metadata.
func (c *Component) Health(ctx context.Context) component.Health {
	c.mu.Lock()
	running, cfg := c.running, c.cfg
	c.mu.Unlock()

	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if !cfg.Enabled {
		h.Message = "disabled"
		return h
	}
	if !running {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
		return h
	}

	dialer, err := CreateDialer(&cfg)
	if err != nil {
		h.Status, h.Message = component.StatusUnhealthy, err.Error()
		return h
	}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		h.Status, h.Message = component.StatusUnhealthy, fmt.Sprintf("broker unreachable: %v", err)
		return h
	}
	defer conn.Close() //nolint:errcheck // probe connection
	if _, err := conn.Brokers(); err != nil {
		h.Status, h.Message = component.StatusDegraded, fmt.Sprintf("broker metadata: %v", err)
	}
	return h
}

func (c *Component) Describe() component.Description {
	c.mu.Lock()
	defer c.mu.Unlock()
	details := fmt.Sprintf("brokers=%v topic=%s", c.cfg.Brokers, c.cfg.Topic)
	if c.producer != nil {
		m := c.producer.Metrics()
		details += fmt.Sprintf(" messages=%d errors=%d", m.Messages, m.Errors)
	}
	return component.Description{Name: "Kafka", Type: "kafka", Details: details}
}
