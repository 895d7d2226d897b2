package telemetry

import (
	"context"
	"testing"
)

func TestTraceIDAndSpanIDEmptyWithoutActiveSpan(t *testing.T) {
	ctx := context.Background()
	if id := TraceID(ctx); id != "" {
		t.Errorf("TraceID() = %q, want empty", id)
	}
	if id := SpanID(ctx); id != "" {
		t.Errorf("SpanID() = %q, want empty", id)
	}
}

func TestInitInstallsProviderAndStartSpanProducesIDs(t *testing.T) {
	shutdown := Init("agentmesh-test")
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown() error = %v", err)
		}
	}()

	ctx, span := StartSpan(context.Background(), "agentmesh-test", "scan_ip")
	defer span.End()

	if id := TraceID(ctx); id == "" {
		t.Errorf("TraceID() = empty, want a populated trace id once a span is active")
	}
	if id := SpanID(ctx); id == "" {
		t.Errorf("SpanID() = empty, want a populated span id once a span is active")
	}
}

func TestStartSpanNestsUnderParent(t *testing.T) {
	shutdown := Init("agentmesh-test")
	defer func() { _ = shutdown(context.Background()) }()

	parentCtx, parentSpan := StartSpan(context.Background(), "agentmesh-test", "handle_message")
	defer parentSpan.End()

	childCtx, childSpan := StartSpan(parentCtx, "agentmesh-test", "dispatch_tool")
	defer childSpan.End()

	if TraceID(childCtx) != TraceID(parentCtx) {
		t.Errorf("child trace id %q != parent trace id %q, want same trace", TraceID(childCtx), TraceID(parentCtx))
	}
	if SpanID(childCtx) == SpanID(parentCtx) {
		t.Errorf("child span id should differ from parent span id")
	}
}
