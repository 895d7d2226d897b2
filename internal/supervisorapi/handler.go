// Package supervisorapi is the supervisor's external HTTP surface: POST
// /chat, POST /chat/stream (SSE), GET /chat/history/{session_id}, and GET
// /health, wired to an orchestrator.Orchestrator and a session.Store.
// Grounded on the teacher's internal/web handler style (stdlib net/http,
// jsonResponse/jsonError helpers, manual path parsing) and the event flow
// of original_source/Cybersecurity-Agent/agent/supervisor/api.py.
package supervisorapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldnotes-dev/agentmesh/internal/orchestrator"
	"github.com/fieldnotes-dev/agentmesh/internal/ratelimit"
	"github.com/fieldnotes-dev/agentmesh/internal/reqcontext"
	"github.com/fieldnotes-dev/agentmesh/internal/session"
)

// Handler serves the supervisor's chat API.
type Handler struct {
	orchestrator *orchestrator.Orchestrator
	sessions     session.Store
	limiter      *ratelimit.Limiter
	logger       *slog.Logger
	maxMessageLen int

	mux *http.ServeMux
}

// New builds a Handler and wires its routes onto a fresh mux, wrapped in
// reqcontext.Middleware for request/session id propagation and logging and
// (when apiKey is non-empty) an X-API-Key check per spec.md §6.
func New(serviceName string, orch *orchestrator.Orchestrator, sessions session.Store, limiter *ratelimit.Limiter, logger *slog.Logger, maxMessageLen int, apiKey string) http.Handler {
	h := &Handler{orchestrator: orch, sessions: sessions, limiter: limiter, logger: logger, maxMessageLen: maxMessageLen, mux: http.NewServeMux()}

	h.mux.HandleFunc("/health", h.handleHealth)
	h.mux.HandleFunc("/chat", h.handleChat)
	h.mux.HandleFunc("/chat/stream", h.handleChatStream)
	h.mux.HandleFunc("/chat/history/", h.handleHistory)

	return reqcontext.Middleware(serviceName, logger)(reqcontext.RecoverMiddleware(logger)(apiKeyMiddleware(apiKey)(h.mux)))
}

// apiKeyMiddleware enforces X-API-Key when a non-empty key is configured;
// /health stays open so a load balancer can probe it unauthenticated.
func apiKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.Header.Get("X-API-Key") == apiKey {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid or missing API key"})
		})
	}
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil && h.logger != nil {
		h.logger.Error("json encode error", "error", err)
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil && h.logger != nil {
		h.logger.Error("json encode error", "error", err)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]string{"status": "ok"})
}

// clientKey identifies a caller for rate limiting: the session id if given,
// otherwise the remote address.
func clientKey(r *http.Request, sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	return r.RemoteAddr
}

func (h *Handler) allow(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	if h.limiter == nil {
		return true
	}
	allowed, retryAfter := h.limiter.Allow(clientKey(r, sessionID))
	if !allowed {
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
		h.jsonError(w, "rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	return true
}

func (h *Handler) decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if req.Message == "" {
		h.jsonError(w, "message is required", http.StatusBadRequest)
		return req, false
	}
	if h.maxMessageLen > 0 && len(req.Message) > h.maxMessageLen {
		h.jsonError(w, "message exceeds maximum length", http.StatusBadRequest)
		return req, false
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	return req, true
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}
	if !h.allow(w, r, req.SessionID) {
		return
	}

	result, err := h.orchestrator.Handle(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, ChatResponse{
		Output:    result.Reply,
		AgentUsed: string(result.Intent),
		SessionID: req.SessionID,
		ToolCalls: toolCallNames(result.Trace),
		Trace:     result.Trace,
	})
}

// toolCallNames extracts the tool names invoked during a turn, in order, for
// the response's tool_calls[] field (spec.md §6).
func toolCallNames(trace []orchestrator.TraceEvent) []string {
	names := make([]string, 0, len(trace))
	for _, ev := range trace {
		if ev.Kind == orchestrator.TraceToolCall {
			names = append(names, ev.Tool)
		}
	}
	return names
}

func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}
	if !h.allow(w, r, req.SessionID) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(ev sseEvent) {
		raw, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", raw)
		flusher.Flush()
	}

	emit(sseEvent{Type: "start", SessionID: req.SessionID})

	result, err := h.orchestrator.Handle(r.Context(), req.SessionID, req.Message)
	if err != nil {
		emit(sseEvent{Type: "error", Data: err.Error()})
		emit(sseEvent{Type: "end"})
		return
	}

	for _, ev := range result.Trace {
		switch ev.Kind {
		case orchestrator.TraceToolCall:
			emit(sseEvent{Type: "tool_call", Data: map[string]any{"server": ev.Server, "tool": ev.Tool}})
		case orchestrator.TraceToolResult:
			emit(sseEvent{Type: "tool_result", Data: map[string]any{"server": ev.Server, "tool": ev.Tool, "data": ev.Data}})
		case orchestrator.TraceParameterResolved:
			emit(sseEvent{Type: "parameter_resolved", Data: map[string]any{"arg": ev.Arg, "tool": ev.Tool}})
		}
	}

	emit(sseEvent{Type: "output", Data: result.Reply})
	emit(sseEvent{Type: "final_output", AgentUsed: string(result.Intent), SessionID: req.SessionID})
	emit(sseEvent{Type: "end"})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := strings.TrimPrefix(r.URL.Path, "/chat/history/")
	if sessionID == "" {
		h.jsonError(w, "session id required", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	history := make([]HistoryMessage, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		history = append(history, HistoryMessage{Role: m.Role, Content: m.Content})
	}

	h.jsonResponse(w, HistoryResponse{SessionID: sessionID, Summary: sess.Summary, History: history})
}
