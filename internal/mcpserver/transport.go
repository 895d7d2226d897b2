package mcpserver

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fieldnotes-dev/agentmesh/internal/metrics"
	"github.com/fieldnotes-dev/agentmesh/internal/reqcontext"
	"github.com/fieldnotes-dev/agentmesh/internal/toolproto"
)

// Server exposes a Dispatcher and Registry over JSON-RPC 2.0 at POST /,
// plus GET /health and GET /metrics for ops.
type Server struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
	mux        *http.ServeMux
	handler    http.Handler
}

// NewServer wires handlers onto a fresh mux under the given Middleware.
func NewServer(serviceName string, dispatcher *Dispatcher, logger *slog.Logger) *Server {
	s := &Server{dispatcher: dispatcher, logger: logger, mux: http.NewServeMux()}

	s.mux.HandleFunc("/", s.handleRPC)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler())

	s.handler = reqcontext.Middleware(serviceName, logger)(reqcontext.RecoverMiddleware(logger)(s.mux))
	return s
}

// handler is the fully wrapped mux, set by NewServer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rw := s.newRPCWriter(w, r)

	var req toolproto.JSONRPCRequest
	dec := json.NewDecoder(bufio.NewReader(r.Body))
	if err := dec.Decode(&req); err != nil {
		rw.Error(nil, toolproto.ErrCodeParseError, fmt.Sprintf("parse error: %v", err))
		return
	}

	switch req.Method {
	case "initialize":
		rw.Result(req.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
		})
	case "tools/list":
		rw.Result(req.ID, toolproto.ListToolsResult{Tools: s.dispatcher.Registry.Descriptors()})
	case "tools/call":
		var params toolproto.CallToolParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				rw.Error(req.ID, toolproto.ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
				return
			}
		}
		if params.SessionID == "" {
			params.SessionID = reqcontext.SessionID(r.Context())
		}
		result := s.dispatcher.Dispatch(r.Context(), params)
		wrapped, err := toolproto.WrapCallResult(result)
		if err != nil {
			rw.Error(req.ID, toolproto.ErrCodeInternalError, err.Error())
			return
		}
		rw.Result(req.ID, wrapped)
	default:
		rw.Error(req.ID, toolproto.ErrCodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

// rpcWriter delivers a single JSON-RPC response, either as one JSON body or
// as a sequence of SSE frames, per §4.1's content negotiation.
type rpcWriter interface {
	Result(id any, result any)
	Error(id any, code int, message string)
}

// newRPCWriter picks a plain JSON writer or an SSE writer based on the
// request's Accept header, falling back to JSON when the underlying
// ResponseWriter can't flush incrementally.
func (s *Server) newRPCWriter(w http.ResponseWriter, r *http.Request) rpcWriter {
	if flusher, ok := w.(http.Flusher); ok && strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return newSSERPCWriter(w, flusher)
	}
	return jsonRPCWriter{w: w}
}

// jsonRPCWriter writes the whole response as a single JSON body.
type jsonRPCWriter struct {
	w http.ResponseWriter
}

func (j jsonRPCWriter) Result(id any, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		j.Error(id, toolproto.ErrCodeInternalError, err.Error())
		return
	}
	j.w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(j.w).Encode(toolproto.JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: raw})
}

func (j jsonRPCWriter) Error(id any, code int, message string) {
	j.w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(j.w).Encode(toolproto.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &toolproto.JSONRPCError{Code: code, Message: message},
	})
}

// sseFrame is one `data:` line written to a streamed POST / response.
type sseFrame struct {
	Type     string                    `json:"type"`
	Response *toolproto.JSONRPCResponse `json:"response,omitempty"`
}

// sseRPCWriter streams a "start" frame immediately, the result/error as a
// "result"/"error" frame, and a trailing "end" frame — one flush per frame,
// per §4.1's "one data: frame per flush point" contract.
type sseRPCWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSERPCWriter(w http.ResponseWriter, flusher http.Flusher) *sseRPCWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	s := &sseRPCWriter{w: w, flusher: flusher}
	s.emit(sseFrame{Type: "start"})
	return s
}

func (s *sseRPCWriter) emit(frame sseFrame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "data: %s\n\n", raw)
	s.flusher.Flush()
}

func (s *sseRPCWriter) Result(id any, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.Error(id, toolproto.ErrCodeInternalError, err.Error())
		return
	}
	s.emit(sseFrame{Type: "result", Response: &toolproto.JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: raw}})
	s.emit(sseFrame{Type: "end"})
}

func (s *sseRPCWriter) Error(id any, code int, message string) {
	s.emit(sseFrame{Type: "error", Response: &toolproto.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &toolproto.JSONRPCError{Code: code, Message: message},
	}})
	s.emit(sseFrame{Type: "end"})
}
