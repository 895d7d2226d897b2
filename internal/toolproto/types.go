// Package toolproto defines the wire and in-process types shared by the
// tool-server runtime and the tool-calling client: the JSON-RPC envelope,
// tool descriptors, the standard tool-result shape, and the tool invocation
// record used for audit. These mirror the MCP tool surface: tools/list and
// tools/call only — no resources or prompts, which the tool-server runtime
// here does not expose.
package toolproto

import (
	"encoding/json"
	"time"
)

// JSON-RPC 2.0 envelope, reused for both requests and the streamed SSE
// frames the tool server emits.

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
	ErrCodeToolNotFound   = -32002
)

// ToolDescriptor is how a tool advertises itself via tools/list.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Mutating    bool            `json:"mutating,omitempty"`
	RequiresApproval bool       `json:"requiresApproval,omitempty"`
}

// ListToolsResult is the result of tools/list.
type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// ContentItem is one element of a tools/call result's content array. Only
// the text form is produced by this runtime; the field exists because
// that's the shape every MCP client (including this one) expects.
type ContentItem struct {
	Text string `json:"text"`
}

// CallToolWireResult is the literal shape of a tools/call JSON-RPC result:
// {content: [{text: <JSON-string of a StandardResult>}]}, per spec.md §6.
type CallToolWireResult struct {
	Content []ContentItem `json:"content"`
}

// WrapCallResult marshals a StandardResult and wraps it in the
// content/text envelope every tools/call response uses.
func WrapCallResult(result StandardResult) (CallToolWireResult, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return CallToolWireResult{}, err
	}
	return CallToolWireResult{Content: []ContentItem{{Text: string(raw)}}}, nil
}

// CallToolParams is the params of a tools/call request.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	// ApprovalToken carries a signed approval for mutating tools (§4.9).
	ApprovalToken string `json:"approvalToken,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
}

// StandardResult is the envelope every tool call returns, cacheable or not.
type StandardResult struct {
	Status     string          `json:"status"` // "success" | "error"
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Source     string          `json:"source"`
	DurationMs int64           `json:"duration_ms"`
	Cache      CacheInfo       `json:"cache"`
}

type CacheInfo struct {
	Hit bool `json:"hit"`
}

// OK builds a successful StandardResult.
func OK(source string, data any, duration time.Duration, cacheHit bool) (StandardResult, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return StandardResult{}, err
	}
	return StandardResult{
		Status:     "success",
		Data:       raw,
		Timestamp:  time.Now(),
		Source:     source,
		DurationMs: duration.Milliseconds(),
		Cache:      CacheInfo{Hit: cacheHit},
	}, nil
}

// Err builds a failed StandardResult.
func Err(source string, err error, duration time.Duration) StandardResult {
	return StandardResult{
		Status:     "error",
		Error:      err.Error(),
		Timestamp:  time.Now(),
		Source:     source,
		DurationMs: duration.Milliseconds(),
	}
}

// ToolInvocationRecord is the audit-facing record of one dispatch, emitted
// regardless of outcome.
type ToolInvocationRecord struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id,omitempty"`
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args,omitempty"`
	Success    bool           `json:"success"`
	CacheHit   bool           `json:"cache_hit"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
}
