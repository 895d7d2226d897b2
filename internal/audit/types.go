// Package audit provides structured logging of tool invocations and
// approval decisions: the mesh's audit trail. Adapted from the teacher's
// audit package (same Event/Config shape, async buffered writer) but
// trimmed to the event types this control plane actually emits, and with
// the masking behavior from the GitHub bundle's shared/audit.py
// (_mask_value) applied to any arguments logged.
package audit

import (
	"encoding/json"
	"time"
)

// EventType categorizes audit events.
type EventType string

const (
	EventToolInvocation EventType = "tool.invocation"
	EventToolCompletion EventType = "tool.completion"
	EventToolDenied     EventType = "tool.denied"
	EventToolRetry      EventType = "tool.retry"

	EventApprovalGranted EventType = "approval.granted"
	EventApprovalDenied  EventType = "approval.denied"

	EventRouteDetected EventType = "route.detected"

	EventSessionCompact EventType = "session.compact"
)

// Level represents audit log severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event represents a single audit log entry.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Level      Level          `json:"level"`
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"session_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details,omitempty"`
	Duration   time.Duration  `json:"duration,omitempty"`
	Error      string         `json:"error,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	SpanID     string         `json:"span_id,omitempty"`
}

// ToolInvocationDetails contains details for tool invocation events.
type ToolInvocationDetails struct {
	ToolName   string          `json:"tool_name"`
	ToolCallID string          `json:"tool_call_id"`
	Args       json.RawMessage `json:"args,omitempty"`
	Attempt    int             `json:"attempt"`
}

// ToolCompletionDetails contains details for tool completion events.
type ToolCompletionDetails struct {
	ToolName   string `json:"tool_name"`
	ToolCallID string `json:"tool_call_id"`
	Success    bool   `json:"success"`
	CacheHit   bool   `json:"cache_hit"`
	Duration   int64  `json:"duration_ms"`
}

// SessionCompactDetails contains details for session compaction events.
type SessionCompactDetails struct {
	MessagesBeforeCompact int `json:"messages_before_compact"`
	MessagesAfterCompact  int `json:"messages_after_compact"`
}

// OutputFormat specifies the audit log output format.
type OutputFormat string

const (
	FormatJSON   OutputFormat = "json"
	FormatText   OutputFormat = "text"
)

// Config configures the audit logger.
type Config struct {
	Enabled bool
	Level   Level
	Format  OutputFormat
	// Output specifies where to write logs:
	// "stdout", "stderr", "file:<path>", or "sqlite:<path>".
	Output string

	IncludeToolArgs bool
	MaxFieldSize    int
	SampleRate      float64
	BufferSize      int
	FlushInterval   time.Duration
}

// DefaultConfig returns a default audit configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Level:           LevelInfo,
		Format:          FormatJSON,
		Output:          "stdout",
		IncludeToolArgs: true,
		MaxFieldSize:    1024,
		SampleRate:      1.0,
		BufferSize:      1000,
		FlushInterval:   5 * time.Second,
	}
}
