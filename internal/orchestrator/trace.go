package orchestrator

import "time"

// TraceKind names one step of the Handle pipeline, recorded for both the
// HTTP JSON reply and each /chat/stream SSE event.
type TraceKind string

const (
	TraceRoute             TraceKind = "route"
	TraceToolCall          TraceKind = "tool_call"
	TraceToolResult        TraceKind = "tool_result"
	TraceParameterResolved TraceKind = "parameter_resolved"
	TraceReply             TraceKind = "reply"
	TraceError             TraceKind = "error"
)

// TraceEvent is one recorded step, emitted in order.
type TraceEvent struct {
	Kind      TraceKind      `json:"kind"`
	Server    string         `json:"server,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Arg       string         `json:"arg,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
