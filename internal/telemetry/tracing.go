package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps the handful of spans memguard opens around its own
// analysis hot paths — analyze()/compare() (§6 Signals) and the Hotspot
// Analyzer's per-tick scan — so a host already running OpenTelemetry sees
// memguard's internal work in the same trace. Grounded on ariadne's
// OpenTelemetryTracer (engine/monitoring/monitoring.go), trimmed to memguard's
// two call sites rather than the business-rule/strategy vocabulary ariadne
// traces.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer installs a bare TracerProvider (no exporter configured; a host
// that wants spans shipped somewhere calls otel.SetTracerProvider itself
// before constructing the agent, and NewTracer will pick that provider up
// via otel.Tracer) and returns a Tracer bound to it.
func NewTracer(serviceName string) *Tracer {
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		otel.SetTracerProvider(sdktrace.NewTracerProvider())
	}
	return &Tracer{tracer: otel.Tracer(serviceName)}
}

// StartAnalysis opens a span around one analyze()/compare() call.
func (t *Tracer) StartAnalysis(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "memguard."+op)
}

// StartHotspotScan opens a span around one Hotspot Analyzer tick.
func (t *Tracer) StartHotspotScan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "memguard.hotspot_scan")
}
