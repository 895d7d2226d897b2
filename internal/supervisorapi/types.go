package supervisorapi

import "github.com/fieldnotes-dev/agentmesh/internal/orchestrator"

// ChatRequest is the body of POST /chat and POST /chat/stream.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the body of POST /chat.
type ChatResponse struct {
	Output    string                    `json:"output"`
	AgentUsed string                    `json:"agent_used"`
	SessionID string                    `json:"session_id"`
	ToolCalls []string                  `json:"tool_calls"`
	Trace     []orchestrator.TraceEvent `json:"trace"`
}

// HistoryResponse is the body of GET /chat/history/{session_id}.
type HistoryResponse struct {
	SessionID string    `json:"session_id"`
	Summary   string    `json:"summary,omitempty"`
	History   []HistoryMessage `json:"history"`
}

// HistoryMessage is one message in a session's history.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// sseEvent is one frame written to a /chat/stream response.
type sseEvent struct {
	Type      string                  `json:"type"`
	SessionID string                  `json:"session_id,omitempty"`
	AgentUsed string                  `json:"agent_used,omitempty"`
	Data      any                     `json:"data,omitempty"`
}
