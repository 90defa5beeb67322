// Package observability wires OpenTelemetry tracing and metrics.
//
// With observability.enabled the component installs OTLP/HTTP exporters as the
// global providers; otherwise spans and instruments are no-ops.
//
//	ctx, span := observability.StartSpan(ctx, "run")
//	defer span.End()
//
//	metrics, _ := observability.NewMetrics(observability.Meter())
//	metrics.RunStarted(ctx, "stations")
//
// ServiceHealth folds component health into the /health response.
package observability
