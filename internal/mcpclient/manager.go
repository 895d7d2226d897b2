// Package mcpclient is the supervisor side of the tool-call subsystem: it
// holds one HTTP client per specialist server, tracks whether each server
// is reachable, and normalizes tools/call results for the orchestrator.
// It mirrors the shape of the MCP server manager the tool-server runtime's
// teacher package kept client- and server-side logic in, now split so the
// client has no dependency on registry/dispatch internals.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldnotes-dev/agentmesh/internal/backoff"
	"github.com/fieldnotes-dev/agentmesh/internal/config"
	"github.com/fieldnotes-dev/agentmesh/internal/toolproto"
)

// ServerStatus is the manager's live view of one specialist server.
type ServerStatus struct {
	Name      string
	URL       string
	Reachable bool
	LastError string
	CheckedAt time.Time
}

// Manager holds a client per specialist and the retry policy tool calls
// go through.
type Manager struct {
	httpClient *http.Client
	logger     *slog.Logger
	policy     backoff.BackoffPolicy
	maxAttempts int

	mu       sync.RWMutex
	servers  map[string]config.ServiceEndpoint
	statuses map[string]ServerStatus
}

// New builds a Manager over the given service list.
func New(services config.ServiceList, logger *slog.Logger) *Manager {
	policy := backoff.DefaultPolicy()
	policy.MaxMs = 16000 // no single retry delay exceeds 16s
	m := &Manager{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
		policy:      policy,
		maxAttempts: 3,
		servers:     make(map[string]config.ServiceEndpoint, len(services.Services)),
		statuses:    make(map[string]ServerStatus, len(services.Services)),
	}
	for _, s := range services.Services {
		m.servers[s.Name] = s
		m.statuses[s.Name] = ServerStatus{Name: s.Name, URL: s.URL, Reachable: true}
	}
	return m
}

// Servers lists the configured server names.
func (m *Manager) Servers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	return names
}

// Statuses returns a snapshot of every server's reachability.
func (m *Manager) Statuses() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ServerStatus, 0, len(m.statuses))
	for _, st := range m.statuses {
		out = append(out, st)
	}
	return out
}

// Reachable reports whether a named server's most recent call succeeded.
// A server the manager has never called is assumed reachable.
func (m *Manager) Reachable(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statuses[name]
	if !ok {
		return false
	}
	return st.Reachable
}

func (m *Manager) recordStatus(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.statuses[name]
	st.Reachable = err == nil
	st.CheckedAt = time.Now()
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
	}
	m.statuses[name] = st
}

// ListTools calls tools/list on the named server.
func (m *Manager) ListTools(ctx context.Context, server string) ([]toolproto.ToolDescriptor, error) {
	raw, err := m.call(ctx, server, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result toolproto.ListToolsResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, &toolproto.UpstreamPermanentError{Tool: server, Err: err}
		}
	}
	return result.Tools, nil
}

// CallTool invokes one tool on the named server, retrying transient
// failures and normalizing the returned result (§4.8) into a plain map of
// the tool's data.
func (m *Manager) CallTool(ctx context.Context, server, sessionID, tool string, args map[string]any, approvalToken string) (map[string]any, error) {
	argsRaw, err := json.Marshal(args)
	if err != nil {
		return nil, &toolproto.UpstreamPermanentError{Tool: tool, Err: err}
	}
	params := toolproto.CallToolParams{
		Name:          tool,
		Arguments:     argsRaw,
		ApprovalToken: approvalToken,
		SessionID:     sessionID,
	}

	result, err := backoff.RetryClassified(ctx, m.policy, m.maxAttempts, func(attempt int) (map[string]any, error) {
		raw, callErr := m.call(ctx, server, "tools/call", params)
		if callErr != nil {
			return nil, callErr
		}
		normalized := normalizeResult(raw)
		if status, _ := normalized["status"].(string); status == "error" {
			errMsg, _ := normalized["error"].(string)
			return nil, &toolproto.UpstreamTransientError{Tool: tool, Err: fmt.Errorf("%s", errMsg)}
		}
		return normalized, nil
	})
	if err != nil {
		return nil, err
	}

	if data, ok := result.Value["data"].(map[string]any); ok {
		return data, nil
	}
	return result.Value, nil
}

// call sends one JSON-RPC request and returns the raw "result" field,
// classifying failures per §4.6/§7 so callers can retry transient ones and
// fail fast on permanent ones.
func (m *Manager) call(ctx context.Context, server, method string, params any) (json.RawMessage, error) {
	m.mu.RLock()
	endpoint, ok := m.servers[server]
	m.mu.RUnlock()
	if !ok {
		return nil, &toolproto.UpstreamPermanentError{Tool: server, Err: fmt.Errorf("unknown server %q", server)}
	}

	var paramsRaw json.RawMessage
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, &toolproto.UpstreamPermanentError{Tool: server, Err: err}
		}
		paramsRaw = raw
	}

	req := toolproto.JSONRPCRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: paramsRaw}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &toolproto.UpstreamPermanentError{Tool: server, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &toolproto.UpstreamPermanentError{Tool: server, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		m.recordStatus(server, err)
		return nil, &toolproto.UpstreamTransientError{Tool: server, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		err := fmt.Errorf("server returned %d", resp.StatusCode)
		m.recordStatus(server, err)
		return nil, &toolproto.UpstreamTransientError{Tool: server, Err: err}
	}
	if resp.StatusCode >= 400 {
		err := fmt.Errorf("server returned %d", resp.StatusCode)
		m.recordStatus(server, err)
		return nil, &toolproto.UpstreamPermanentError{Tool: server, Err: err}
	}

	var rpcResp toolproto.JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		m.recordStatus(server, err)
		return nil, &toolproto.UpstreamPermanentError{Tool: server, Err: err}
	}
	if rpcResp.Error != nil {
		err := fmt.Errorf("%s", rpcResp.Error.Message)
		m.recordStatus(server, nil)
		return nil, &toolproto.UpstreamPermanentError{Tool: server, Err: err}
	}

	m.recordStatus(server, nil)
	if m.logger != nil {
		m.logger.Debug("mcp_client_call", "server", server, "method", method)
	}
	return rpcResp.Result, nil
}

// ServerExecutor adapts one named server on a Manager to the
// mcpserver.ToolExecutor interface the parameter resolver uses to look up
// defaults (it never needs approval tokens or a session id).
type ServerExecutor struct {
	manager *Manager
	server  string
}

// Executor returns a ToolExecutor bound to one server.
func (m *Manager) Executor(server string) ServerExecutor {
	return ServerExecutor{manager: m, server: server}
}

// Call implements mcpserver.ToolExecutor.
func (e ServerExecutor) Call(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	return e.manager.CallTool(ctx, e.server, "", tool, args, "")
}
