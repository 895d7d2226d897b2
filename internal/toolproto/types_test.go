package toolproto

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestOKMarshalsDataAndSetsSuccessStatus(t *testing.T) {
	result, err := OK("recon", map[string]any{"n": 1}, 5*time.Millisecond, false)
	if err != nil {
		t.Fatalf("OK() error = %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("Status = %q, want success", result.Status)
	}
	if result.Source != "recon" {
		t.Fatalf("Source = %q, want recon", result.Source)
	}
	if result.Cache.Hit {
		t.Fatalf("Cache.Hit = true, want false")
	}

	var data map[string]any
	if err := json.Unmarshal(result.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data["n"].(float64) != 1 {
		t.Fatalf("data[n] = %v, want 1", data["n"])
	}
}

func TestOKPropagatesCacheHit(t *testing.T) {
	result, err := OK("recon", map[string]any{"n": 1}, 0, true)
	if err != nil {
		t.Fatalf("OK() error = %v", err)
	}
	if !result.Cache.Hit {
		t.Fatalf("Cache.Hit = false, want true")
	}
}

func TestOKRejectsUnmarshalableData(t *testing.T) {
	_, err := OK("recon", map[string]any{"bad": make(chan int)}, 0, false)
	if err == nil {
		t.Fatalf("expected marshal error, got nil")
	}
}

func TestErrBuildsErrorStatus(t *testing.T) {
	result := Err("recon", errors.New("boom"), 2*time.Millisecond)
	if result.Status != "error" {
		t.Fatalf("Status = %q, want error", result.Status)
	}
	if result.Error != "boom" {
		t.Fatalf("Error = %q, want boom", result.Error)
	}
	if len(result.Data) != 0 {
		t.Fatalf("Data = %q, want empty on error", result.Data)
	}
}

func TestErrorTypesFormatMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &ValidationError{Tool: "scan", Detail: "missing field x"}, "tool scan: invalid arguments: missing field x"},
		{"auth", &AuthError{Reason: "bad token"}, "unauthorized: bad token"},
		{"resolution", &ResolutionError{Tool: "dispatch", Arg: "workflow_id", Why: "ambiguous"}, "cannot resolve dispatch.workflow_id: ambiguous"},
		{"internal", &InternalError{Detail: "panic recovered"}, "internal error: panic recovered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpstreamErrorsUnwrap(t *testing.T) {
	inner := errors.New("connection reset")

	transient := &UpstreamTransientError{Tool: "get_cvss", Err: inner}
	if !errors.Is(transient, inner) {
		t.Errorf("UpstreamTransientError does not unwrap to inner error")
	}

	permanent := &UpstreamPermanentError{Tool: "get_cvss", Err: inner}
	if !errors.Is(permanent, inner) {
		t.Errorf("UpstreamPermanentError does not unwrap to inner error")
	}
}
