// Package telemetry wires OpenTelemetry tracing into the mesh's request and
// tool-call paths. It stays deliberately thin: a process-local tracer
// provider by default, with SetExporter as the seam a real deployment uses
// to ship spans somewhere.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	mu       sync.Mutex
	provider *trace.TracerProvider
)

// Init installs a process-wide TracerProvider under the given service name.
// Safe to call more than once; later calls replace the provider.
func Init(serviceName string) func(context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	provider = trace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	return provider.Shutdown
}

// SetExporter swaps in a TracerProvider built with a real span exporter
// (OTLP, Jaeger, etc). Call Init first so there's something to replace.
func SetExporter(tp *trace.TracerProvider) {
	mu.Lock()
	defer mu.Unlock()
	provider = tp
	otel.SetTracerProvider(tp)
}

// Tracer returns a named tracer from the current global provider.
func Tracer(name string) oteltrace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a span named for a request or tool call.
func StartSpan(ctx context.Context, tracerName, spanName string) (context.Context, oteltrace.Span) {
	return Tracer(tracerName).Start(ctx, spanName)
}

// TraceID extracts the current span's trace id, or "" if no span is active.
func TraceID(ctx context.Context) string {
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanID extracts the current span's span id, or "" if no span is active.
func SpanID(ctx context.Context) string {
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}
