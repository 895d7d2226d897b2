// Package reqcontext propagates a request id and session id through a
// request's context.Context and provides a streaming-safe HTTP middleware
// that logs method/path/status/latency once the response completes.
package reqcontext

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/fieldnotes-dev/agentmesh/internal/telemetry"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sessionIDKey
	serviceNameKey
)

// WithRequestID returns a context carrying the given request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id carried by ctx, or "" if none.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithSessionID returns a context carrying the given session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the session id carried by ctx, or "" if none.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// ServiceName returns the service name carried by ctx, or "" if none.
func ServiceName(ctx context.Context) string {
	name, _ := ctx.Value(serviceNameKey).(string)
	return name
}

// responseWriter wraps http.ResponseWriter to capture the status code
// without buffering the body, so it stays safe for SSE streaming.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer's Flush when it supports it, so
// SSE handlers can still flush each event through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RecoverMiddleware is the edge-of-process panic guard: it converts any
// panic escaping a handler into a JSON InternalError / HTTP 500, logs the
// stack, and never lets a single request crash the process.
func RecoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if logger != nil {
						logger.Error("panic_recovered",
							"error", rec,
							"path", r.URL.Path,
							"request_id", RequestID(r.Context()),
							"stack", string(debug.Stack()),
						)
					}
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]any{
						"error": map[string]any{
							"type":    "InternalError",
							"message": "internal server error",
						},
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware assigns a request id, reads a session id from the
// X-Session-Id header or the session_id query parameter, opens an OTel
// span for the request, and logs method/path/status/latency/session
// id/request id on completion.
func Middleware(serviceName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rid := uuid.NewString()
			sid := r.Header.Get("X-Session-Id")
			if sid == "" {
				sid = r.URL.Query().Get("session_id")
			}

			ctx := WithRequestID(r.Context(), rid)
			ctx = WithSessionID(ctx, sid)
			ctx = context.WithValue(ctx, serviceNameKey, serviceName)

			ctx, span := telemetry.StartSpan(ctx, serviceName, r.Method+" "+r.URL.Path)
			defer span.End()

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			wrapped.Header().Set("X-Request-Id", rid)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			if logger != nil {
				logger.Info("http_request",
					"service", serviceName,
					"method", r.Method,
					"path", r.URL.Path,
					"status", wrapped.status,
					"duration_ms", time.Since(start).Milliseconds(),
					"session_id", sid,
					"request_id", rid,
				)
			}
		})
	}
}
