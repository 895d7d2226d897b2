package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
)

const ipSchema = `{"type":"object","properties":{"ip":{"type":"string"}},"required":["ip"]}`

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry("recon")
	err := r.Register(Tool{
		Name:   "scan_ip",
		Schema: json.RawMessage(ipSchema),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"open_ports": []int{22, 443}}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tool, ok := r.Get("scan_ip")
	if !ok {
		t.Fatalf("Get(scan_ip) not found")
	}
	if tool.Name != "scan_ip" {
		t.Errorf("Name = %q, want scan_ip", tool.Name)
	}

	if _, ok := r.Get("missing"); ok {
		t.Errorf("Get(missing) found a tool, want not found")
	}
}

func TestRegistryRegisterRejectsEmptyName(t *testing.T) {
	r := NewRegistry("recon")
	if err := r.Register(Tool{Name: ""}); err == nil {
		t.Fatalf("Register() with empty name returned nil error")
	}
}

func TestRegistryRegisterRejectsInvalidSchema(t *testing.T) {
	r := NewRegistry("recon")
	err := r.Register(Tool{Name: "broken", Schema: json.RawMessage(`{not json`)})
	if err == nil {
		t.Fatalf("Register() with malformed schema returned nil error")
	}
}

func TestRegistryDescriptorsReflectsMutatingAndApprovalFlags(t *testing.T) {
	r := NewRegistry("github")
	if err := r.Register(Tool{Name: "merge_pr", Mutating: true, RequiresApproval: true}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	descs := r.Descriptors()
	if len(descs) != 1 {
		t.Fatalf("len(Descriptors()) = %d, want 1", len(descs))
	}
	if !descs[0].Mutating || !descs[0].RequiresApproval {
		t.Errorf("descriptor = %+v, want Mutating and RequiresApproval true", descs[0])
	}
}

func TestToolValidateEnforcesRequiredFields(t *testing.T) {
	r := NewRegistry("recon")
	if err := r.Register(Tool{Name: "scan_ip", Schema: json.RawMessage(ipSchema)}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tool, _ := r.Get("scan_ip")

	if err := tool.Validate(map[string]any{"ip": "10.0.0.1"}); err != nil {
		t.Errorf("Validate() with valid args returned error: %v", err)
	}
	if err := tool.Validate(map[string]any{}); err == nil {
		t.Errorf("Validate() with missing required field returned nil error")
	}
}

func TestToolValidateWithoutSchemaAllowsAnything(t *testing.T) {
	r := NewRegistry("recon")
	if err := r.Register(Tool{Name: "no_schema"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tool, _ := r.Get("no_schema")
	if err := tool.Validate(map[string]any{"anything": true}); err != nil {
		t.Errorf("Validate() with no schema returned error: %v", err)
	}
}
