package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/fieldnotes-dev/agentmesh/internal/approval"
	"github.com/fieldnotes-dev/agentmesh/internal/cache"
	"github.com/fieldnotes-dev/agentmesh/internal/toolproto"
)

func newTestRegistry(t *testing.T, tools ...Tool) *Registry {
	t.Helper()
	r := NewRegistry("recon")
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			t.Fatalf("Register(%s) error = %v", tool.Name, err)
		}
	}
	return r
}

func TestDispatchUnknownToolReturnsErrorStatus(t *testing.T) {
	d := NewDispatcher(NewRegistry("recon"), nil, nil, nil)
	result := d.Dispatch(context.Background(), toolproto.CallToolParams{Name: "does_not_exist"})
	if result.Status != "error" {
		t.Fatalf("Status = %q, want error", result.Status)
	}
}

func TestDispatchSuccessReturnsDataAndSuccessStatus(t *testing.T) {
	registry := newTestRegistry(t, Tool{
		Name: "scan_ip",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"open_ports": []int{22, 443}}, nil
		},
	})
	d := NewDispatcher(registry, nil, nil, nil)

	argsRaw, _ := json.Marshal(map[string]any{"ip": "10.0.0.1"})
	result := d.Dispatch(context.Background(), toolproto.CallToolParams{Name: "scan_ip", Arguments: argsRaw})

	if result.Status != "success" {
		t.Fatalf("Status = %q, want success", result.Status)
	}
	var data map[string]any
	if err := json.Unmarshal(result.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if _, ok := data["open_ports"]; !ok {
		t.Errorf("data = %v, missing open_ports", data)
	}
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	registry := newTestRegistry(t, Tool{
		Name: "scan_ip",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, fmt.Errorf("connection refused")
		},
	})
	d := NewDispatcher(registry, nil, nil, nil)

	result := d.Dispatch(context.Background(), toolproto.CallToolParams{Name: "scan_ip"})
	if result.Status != "error" {
		t.Fatalf("Status = %q, want error", result.Status)
	}
	if result.Error != "connection refused" {
		t.Errorf("Error = %q, want connection refused", result.Error)
	}
}

func TestDispatchValidatesArgsAgainstSchema(t *testing.T) {
	registry := newTestRegistry(t, Tool{
		Name:   "scan_ip",
		Schema: json.RawMessage(ipSchema),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{}, nil
		},
	})
	d := NewDispatcher(registry, nil, nil, nil)

	result := d.Dispatch(context.Background(), toolproto.CallToolParams{Name: "scan_ip"})
	if result.Status != "error" {
		t.Fatalf("Status = %q, want error (missing required ip field)", result.Status)
	}
}

func TestDispatchRequiresApprovalTokenForMutatingTool(t *testing.T) {
	registry := newTestRegistry(t, Tool{
		Name:             "merge_pr",
		RequiresApproval: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"merged": true}, nil
		},
	})
	issuer := approval.NewIssuer("test-secret", time.Minute)
	d := NewDispatcher(registry, nil, issuer, nil)

	result := d.Dispatch(context.Background(), toolproto.CallToolParams{Name: "merge_pr"})
	if result.Status != "error" {
		t.Fatalf("Status = %q, want error (no approval token supplied)", result.Status)
	}
}

func TestDispatchAcceptsValidApprovalToken(t *testing.T) {
	registry := newTestRegistry(t, Tool{
		Name:             "merge_pr",
		RequiresApproval: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"merged": true}, nil
		},
	})
	issuer := approval.NewIssuer("test-secret", time.Minute)
	d := NewDispatcher(registry, nil, issuer, nil)

	argsRaw, _ := json.Marshal(map[string]any{"pr": 42})
	token, err := issuer.Generate("merge_pr", map[string]any{"pr": float64(42)}, "sess-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	result := d.Dispatch(context.Background(), toolproto.CallToolParams{
		Name: "merge_pr", Arguments: argsRaw, ApprovalToken: token, SessionID: "sess-1",
	})
	if result.Status != "success" {
		t.Fatalf("Status = %q, want success, error = %q", result.Status, result.Error)
	}
}

func TestDispatchRejectsApprovalTokenForWrongSession(t *testing.T) {
	registry := newTestRegistry(t, Tool{
		Name:             "merge_pr",
		RequiresApproval: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"merged": true}, nil
		},
	})
	issuer := approval.NewIssuer("test-secret", time.Minute)
	d := NewDispatcher(registry, nil, issuer, nil)

	argsRaw, _ := json.Marshal(map[string]any{"pr": float64(42)})
	token, err := issuer.Generate("merge_pr", map[string]any{"pr": float64(42)}, "sess-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	result := d.Dispatch(context.Background(), toolproto.CallToolParams{
		Name: "merge_pr", Arguments: argsRaw, ApprovalToken: token, SessionID: "sess-2",
	})
	if result.Status != "error" {
		t.Fatalf("Status = %q, want error (token issued for a different session)", result.Status)
	}
}

func TestDispatchServesFromCacheOnSecondCall(t *testing.T) {
	var calls int
	registry := newTestRegistry(t, Tool{
		Name:     "get_cvss",
		CacheTTL: time.Minute,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			calls++
			return map[string]any{"cvss": 9.8}, nil
		},
	})
	backend := cache.NewLRU(100)
	d := NewDispatcher(registry, backend, nil, nil)

	argsRaw, _ := json.Marshal(map[string]any{"cve": "CVE-2024-1234"})
	params := toolproto.CallToolParams{Name: "get_cvss", Arguments: argsRaw}

	first := d.Dispatch(context.Background(), params)
	if first.Status != "success" || first.Cache.Hit {
		t.Fatalf("first Dispatch() = %+v, want success with Cache.Hit=false", first)
	}

	second := d.Dispatch(context.Background(), params)
	if second.Status != "success" || !second.Cache.Hit {
		t.Fatalf("second Dispatch() = %+v, want success with Cache.Hit=true", second)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1 (second call should be served from cache)", calls)
	}
}

func TestDispatchDoesNotCacheWhenCacheTTLIsZero(t *testing.T) {
	var calls int
	registry := newTestRegistry(t, Tool{
		Name: "get_cvss",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			calls++
			return map[string]any{"cvss": 9.8}, nil
		},
	})
	backend := cache.NewLRU(100)
	d := NewDispatcher(registry, backend, nil, nil)

	params := toolproto.CallToolParams{Name: "get_cvss"}
	if _, err := json.Marshal(params); err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	d.Dispatch(context.Background(), params)
	d.Dispatch(context.Background(), params)
	if calls != 2 {
		t.Errorf("handler called %d times, want 2 (no CacheTTL means never cached)", calls)
	}
}
