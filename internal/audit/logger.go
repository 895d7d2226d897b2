package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldnotes-dev/agentmesh/internal/telemetry"
)

// Logger provides structured audit logging of tool invocations and
// approval decisions, with async buffered writes and configurable
// sampling/filtering — the same shape as the teacher's audit.Logger, minus
// its dependency on a deleted observability package (trace/span ids now
// come from internal/telemetry) and with argument masking applied before
// anything is written.
type Logger struct {
	config  Config
	output  io.WriteCloser
	slogger *slog.Logger
	sqlite  *sqliteSink
	buffer  chan *Event
	wg      sync.WaitGroup
	done    chan struct{}
}

// NewLogger creates a new audit logger with the given configuration.
func NewLogger(config Config) (*Logger, error) {
	if !config.Enabled {
		return &Logger{config: config}, nil
	}

	if config.SampleRate == 0 {
		config.SampleRate = 1.0
	}
	if config.BufferSize == 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.MaxFieldSize == 0 {
		config.MaxFieldSize = 1024
	}

	l := &Logger{
		config: config,
		buffer: make(chan *Event, config.BufferSize),
		done:   make(chan struct{}),
	}

	switch {
	case config.Output == "stdout" || config.Output == "":
		l.output = os.Stdout
	case config.Output == "stderr":
		l.output = os.Stderr
	case strings.HasPrefix(config.Output, "file:"):
		path := strings.TrimPrefix(config.Output, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log file: %w", err)
		}
		l.output = f
	case strings.HasPrefix(config.Output, "sqlite:"):
		sink, err := newSQLiteSink(strings.TrimPrefix(config.Output, "sqlite:"))
		if err != nil {
			return nil, fmt.Errorf("open audit sqlite sink: %w", err)
		}
		l.sqlite = sink
		l.output = io.NopCloser(io.Discard)
	default:
		return nil, fmt.Errorf("unsupported audit output: %s", config.Output)
	}

	var handler slog.Handler
	if config.Format == FormatText {
		handler = slog.NewTextHandler(l.output, &slog.HandlerOptions{Level: l.slogLevel()})
	} else {
		handler = slog.NewJSONHandler(l.output, &slog.HandlerOptions{Level: l.slogLevel()})
	}
	l.slogger = slog.New(handler).With("component", "audit")

	l.wg.Add(1)
	go l.writeLoop()

	return l, nil
}

// Close flushes remaining events and closes the logger.
func (l *Logger) Close() error {
	if !l.config.Enabled {
		return nil
	}
	close(l.done)
	l.wg.Wait()

	if l.sqlite != nil {
		l.sqlite.Close()
	}
	if l.output != nil && l.output != os.Stdout && l.output != os.Stderr {
		return l.output.Close()
	}
	return nil
}

// Log writes an audit event to the log.
func (l *Logger) Log(ctx context.Context, event *Event) {
	if !l.config.Enabled {
		return
	}
	if l.config.SampleRate < 1.0 && rand.Float64() > l.config.SampleRate { // #nosec G404 -- sampling, not security
		return
	}
	if !l.shouldLog(event.Level) {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.TraceID == "" {
		event.TraceID = telemetry.TraceID(ctx)
	}
	if event.SpanID == "" {
		event.SpanID = telemetry.SpanID(ctx)
	}

	select {
	case l.buffer <- event:
	default:
		l.writeEvent(event)
	}
}

// LogToolInvocation logs a tool invocation, masking args per MaskArgs.
func (l *Logger) LogToolInvocation(ctx context.Context, sessionID, toolName, toolCallID string, args map[string]any, attempt int) {
	details := map[string]any{"attempt": attempt}
	if l.config.IncludeToolArgs {
		details["args"] = MaskArgs(args)
	}
	l.Log(ctx, &Event{
		Type:       EventToolInvocation,
		Level:      LevelInfo,
		SessionID:  sessionID,
		ToolName:   toolName,
		ToolCallID: toolCallID,
		Action:     "tool_invoked",
		Details:    details,
	})
}

// LogToolCompletion logs a tool completion.
func (l *Logger) LogToolCompletion(ctx context.Context, sessionID, toolName, toolCallID string, success, cacheHit bool, duration time.Duration) {
	level := LevelInfo
	if !success {
		level = LevelWarn
	}
	l.Log(ctx, &Event{
		Type:       EventToolCompletion,
		Level:      level,
		SessionID:  sessionID,
		ToolName:   toolName,
		ToolCallID: toolCallID,
		Action:     "tool_completed",
		Details: map[string]any{
			"success":   success,
			"cache_hit": cacheHit,
		},
		Duration: duration,
	})
}

// LogToolDenied logs a tool denial (approval rejected, rate limited, etc).
func (l *Logger) LogToolDenied(ctx context.Context, sessionID, toolName, toolCallID, reason string) {
	l.Log(ctx, &Event{
		Type:       EventToolDenied,
		Level:      LevelWarn,
		SessionID:  sessionID,
		ToolName:   toolName,
		ToolCallID: toolCallID,
		Action:     "tool_denied",
		Details:    map[string]any{"reason": reason},
	})
}

// LogSessionCompact logs a session compaction event.
func (l *Logger) LogSessionCompact(ctx context.Context, sessionID string, before, after int) {
	l.Log(ctx, &Event{
		Type:      EventSessionCompact,
		Level:     LevelInfo,
		SessionID: sessionID,
		Action:    "session_compacted",
		Details: map[string]any{
			"messages_before_compact": before,
			"messages_after_compact":  after,
		},
	})
}

func (l *Logger) writeLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-l.buffer:
			l.writeEvent(event)
		case <-ticker.C:
			l.flushBuffer()
		case <-l.done:
			l.flushBuffer()
			return
		}
	}
}

func (l *Logger) flushBuffer() {
	for {
		select {
		case event := <-l.buffer:
			l.writeEvent(event)
		default:
			return
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	attrs := []any{
		"audit_id", event.ID,
		"audit_type", event.Type,
		"action", event.Action,
		"timestamp", event.Timestamp.Format(time.RFC3339Nano),
	}
	if event.SessionID != "" {
		attrs = append(attrs, "session_id", event.SessionID)
	}
	if event.ToolName != "" {
		attrs = append(attrs, "tool_name", event.ToolName)
	}
	if event.ToolCallID != "" {
		attrs = append(attrs, "tool_call_id", event.ToolCallID)
	}
	if event.TraceID != "" {
		attrs = append(attrs, "trace_id", event.TraceID)
	}
	if event.SpanID != "" {
		attrs = append(attrs, "span_id", event.SpanID)
	}
	if event.Duration > 0 {
		attrs = append(attrs, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}
	for k, v := range event.Details {
		attrs = append(attrs, k, v)
	}

	switch event.Level {
	case LevelDebug:
		l.slogger.Debug("audit", attrs...)
	case LevelWarn:
		l.slogger.Warn("audit", attrs...)
	case LevelError:
		l.slogger.Error("audit", attrs...)
	default:
		l.slogger.Info("audit", attrs...)
	}

	if l.sqlite != nil {
		l.sqlite.Insert(event)
	}
}

func (l *Logger) shouldLog(level Level) bool {
	levels := map[Level]int{LevelDebug: 0, LevelInfo: 1, LevelWarn: 2, LevelError: 3}
	return levels[level] >= levels[l.config.Level]
}

func (l *Logger) slogLevel() slog.Level {
	switch l.config.Level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
