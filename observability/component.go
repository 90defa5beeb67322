package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/orchestrator/component"
	"github.com/kbukum/orchestrator/logger"
)

// Component installs and flushes the telemetry providers.
type Component struct {
	cfg     Config
	service string
	version string
	log     *logger.Logger

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates the telemetry component.
func NewComponent(cfg Config, service, version string, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, service: service, version: version, log: log.WithComponent("observability")}
}

func (c *Component) Name() string { return "observability" }

func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	tp, err := InitTracer(ctx, c.cfg, c.service, c.version)
	if err != nil {
		return err
	}
	mp, err := InitMeter(ctx, c.cfg, c.service, c.version)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}
	c.tp, c.mp = tp, mp
	c.log.Info("telemetry exporters started", logger.Fields(
		"endpoint", c.cfg.Endpoint, "sample_rate", c.cfg.SampleRate, "metric_interval", c.cfg.MetricInterval))
	return nil
}

// Stop flushes pending spans and metrics.
func (c *Component) Stop(ctx context.Context) error {
	var errs []error
	if c.tp != nil {
		if err := c.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if c.mp != nil {
		if err := c.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Component) Health(_ context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if !c.cfg.Enabled {
		h.Message = "disabled"
	}
	return h
}

func (c *Component) Describe() component.Description {
	if !c.cfg.Enabled {
		return component.Description{Name: "Telemetry", Type: "otel", Details: "disabled"}
	}
	return component.Description{Name: "Telemetry", Type: "otel", Details: "otlp=" + c.cfg.Endpoint}
}
