package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fieldnotes-dev/agentmesh/internal/backoff"
	"github.com/fieldnotes-dev/agentmesh/internal/config"
	"github.com/fieldnotes-dev/agentmesh/internal/toolproto"
)

func newTestManager(t *testing.T, url string) *Manager {
	t.Helper()
	m := New(config.ServiceList{Services: []config.ServiceEndpoint{{Name: "recon", URL: url}}}, nil)
	// Zero out backoff delay so retry tests run instantly.
	m.policy = backoff.BackoffPolicy{InitialMs: 0, MaxMs: 0, Factor: 1, Jitter: 0}
	return m
}

func writeWrappedResult(t *testing.T, w http.ResponseWriter, id any, result toolproto.StandardResult) {
	t.Helper()
	wrapped, err := toolproto.WrapCallResult(result)
	if err != nil {
		t.Fatalf("WrapCallResult: %v", err)
	}
	raw, err := json.Marshal(wrapped)
	if err != nil {
		t.Fatalf("marshal wrapped: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toolproto.JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: raw})
}

// TestCallToolRetriesOn429 reproduces spec.md §4.6: a 429 is transient and
// retried with backoff until the server recovers.
func TestCallToolRetriesOn429(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		result, err := toolproto.OK("recon", map[string]any{"n": 1}, 0, false)
		if err != nil {
			t.Fatalf("OK: %v", err)
		}
		writeWrappedResult(t, w, "1", result)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	data, err := m.CallTool(context.Background(), "recon", "sess-1", "scan_ip", map[string]any{}, "")
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if data["n"].(float64) != 1 {
		t.Errorf("data[n] = %v, want 1", data["n"])
	}
}

// TestCallToolDoesNotRetryOn404 reproduces spec.md §4.6/§7: 404 is permanent
// and must fail on the first attempt.
func TestCallToolDoesNotRetryOn404(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	_, err := m.CallTool(context.Background(), "recon", "sess-1", "scan_ip", map[string]any{}, "")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	var permanent *toolproto.UpstreamPermanentError
	if !errors.As(err, &permanent) {
		t.Errorf("error %v is not an UpstreamPermanentError", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 404)", got)
	}
}

// TestCallToolExhaustsRetriesOn429 confirms a server that never recovers
// still gives up after maxAttempts rather than retrying forever.
func TestCallToolExhaustsRetriesOn429(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	_, err := m.CallTool(context.Background(), "recon", "sess-1", "scan_ip", map[string]any{}, "")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if got := atomic.LoadInt32(&attempts); int(got) != m.maxAttempts {
		t.Errorf("attempts = %d, want %d", got, m.maxAttempts)
	}
}

// TestCallToolRetriesOnToolLevelErrorStatus confirms a tool result whose
// StandardResult.Status is "error" (as opposed to an HTTP failure) is
// treated as transient and retried, per §4.8's normalization contract.
func TestCallToolRetriesOnToolLevelErrorStatus(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			writeWrappedResult(t, w, "1", toolproto.Err("recon", errStub{"upstream flaked"}, 0))
			return
		}
		result, err := toolproto.OK("recon", map[string]any{"n": 2}, 0, false)
		if err != nil {
			t.Fatalf("OK: %v", err)
		}
		writeWrappedResult(t, w, "1", result)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	data, err := m.CallTool(context.Background(), "recon", "sess-1", "scan_ip", map[string]any{}, "")
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
	if data["n"].(float64) != 2 {
		t.Errorf("data[n] = %v, want 2", data["n"])
	}
}

func TestListToolsDecodesDescriptors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := json.Marshal(toolproto.ListToolsResult{Tools: []toolproto.ToolDescriptor{
			{Name: "scan_ip", InputSchema: json.RawMessage(`{}`)},
		}})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toolproto.JSONRPCResponse{JSONRPC: "2.0", ID: "1", Result: raw})
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	tools, err := m.ListTools(context.Background(), "recon")
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "scan_ip" {
		t.Errorf("tools = %+v, want one descriptor named scan_ip", tools)
	}
}

type errStub struct{ msg string }

func (e errStub) Error() string { return e.msg }
