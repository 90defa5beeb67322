package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeter installs a periodic OTLP/HTTP meter provider as the global one.
// The caller shuts it down.
func InitMeter(ctx context.Context, cfg Config, service, version string) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: metric exporter: %w", err)
	}
	res, err := newResource(service, version)
	if err != nil {
		return nil, fmt.Errorf("observability: resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if d, err := time.ParseDuration(cfg.MetricInterval); err == nil && d > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(d))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns the orchestrator meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}

// Metrics holds the orchestrator's instruments.
type Metrics struct {
	runsStarted      metric.Int64Counter
	runsFinished     metric.Int64Counter
	runDuration      metric.Float64Histogram
	attempts         metric.Int64Counter
	activityDuration metric.Float64Histogram
	fired            metric.Int64Counter
	suppressed       metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.runsStarted, "orchestrator.runs.started", "Runs started"},
		{&m.runsFinished, "orchestrator.runs.finished", "Runs finished, by status"},
		{&m.attempts, "orchestrator.activity.attempts", "HTTP attempts, by outcome"},
		{&m.fired, "orchestrator.scheduler.fired", "Trigger boundaries that started a run"},
		{&m.suppressed, "orchestrator.scheduler.suppressed", "Trigger boundaries that already had a run"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("observability: counter %s: %w", c.name, err)
		}
	}
	if m.runDuration, err = meter.Float64Histogram("orchestrator.run.duration",
		metric.WithDescription("Run wall time"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("observability: histogram run.duration: %w", err)
	}
	if m.activityDuration, err = meter.Float64Histogram("orchestrator.activity.duration",
		metric.WithDescription("Activity wall time including retries"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("observability: histogram activity.duration: %w", err)
	}
	return &m, nil
}

// NoopMetrics returns instruments that record nothing.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(InstrumentationName))
	return m
}

func (m *Metrics) RunStarted(ctx context.Context, pipeline string) {
	m.runsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("pipeline", pipeline)))
}

func (m *Metrics) RunFinished(ctx context.Context, pipeline, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("pipeline", pipeline), attribute.String("status", status))
	m.runsFinished.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, d.Seconds(), attrs)
}

// Attempt records one HTTP attempt; outcome is "success", "http_error" or
// "transport_error".
func (m *Metrics) Attempt(ctx context.Context, pipeline, activity, outcome string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("activity", activity),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) ActivityFinished(ctx context.Context, pipeline, activity, status string, d time.Duration) {
	m.activityDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("activity", activity),
		attribute.String("status", status),
	))
}

func (m *Metrics) Fired(ctx context.Context, trigger string) {
	m.fired.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

func (m *Metrics) Suppressed(ctx context.Context, trigger string) {
	m.suppressed.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}
