package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/orchestrator/component"
	"github.com/kbukum/orchestrator/logger"
)

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1 || cfg.MetricInterval != "15s" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid defaults, got %v", err)
	}
	cfg.SampleRate = 2
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for sample rate above 1")
	}
}

func TestStartSpanAndSetSpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartSpan(context.Background(), "run", attribute.String(AttrPipeline, "stations"))
	SetSpanError(span, errors.New("boom"))
	SetSpanError(span, nil)
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if ended[0].Status().Code != codes.Error || ended[0].Status().Description != "boom" {
		t.Fatalf("unexpected status: %+v", ended[0].Status())
	}
	if len(ended[0].Events()) != 1 {
		t.Fatalf("expected one recorded error event, got %d", len(ended[0].Events()))
	}
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	m.RunStarted(ctx, "stations")
	m.RunStarted(ctx, "stations")
	m.RunFinished(ctx, "stations", "Succeeded", time.Second)
	m.Attempt(ctx, "stations", "fetch", "success")
	m.ActivityFinished(ctx, "stations", "fetch", "Succeeded", 200*time.Millisecond)
	m.Fired(ctx, "every-5m")
	m.Suppressed(ctx, "every-5m")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if s, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	if sums["orchestrator.runs.started"] != 2 || sums["orchestrator.scheduler.suppressed"] != 1 {
		t.Fatalf("unexpected sums: %v", sums)
	}
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics()
	m.RunStarted(context.Background(), "p")
	m.Attempt(context.Background(), "p", "a", "transport_error")
}

func TestServiceHealth(t *testing.T) {
	sh := NewServiceHealth("orchestrator", "dev")
	sh.AddComponent(component.Health{Name: "redis", Status: component.StatusDegraded})
	if sh.Status != component.StatusDegraded || !sh.Healthy() {
		t.Fatalf("expected degraded but healthy, got %s", sh.Status)
	}
	sh.AddComponent(component.Health{Name: "database", Status: component.StatusUnhealthy})
	sh.AddComponent(component.Health{Name: "kafka", Status: component.StatusDegraded})
	if sh.Status != component.StatusUnhealthy || sh.Healthy() {
		t.Fatalf("expected unhealthy, got %s", sh.Status)
	}
}

func TestDisabledComponent(t *testing.T) {
	c := NewComponent(Config{}, "orchestrator", "dev", logger.NewNop())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
