// Package mcpserver implements the tool-server runtime every specialist
// bundle embeds: a registry of tools, a dispatch pipeline (validate,
// resolve, approval-check, cache, invoke, normalize, audit), and the
// transport that exposes tools/list and tools/call over JSON-RPC.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fieldnotes-dev/agentmesh/internal/toolproto"
)

// HandlerFunc executes a tool call and returns its result data (marshaled
// into StandardResult.Data by the dispatcher) or an error.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool is one registered tool.
type Tool struct {
	Name             string
	Description      string
	Schema           json.RawMessage // a JSON Schema fragment for Arguments
	Mutating         bool
	RequiresApproval bool
	CacheTTL         time.Duration // 0 = not cacheable
	Handler          HandlerFunc

	compiled *jsonschema.Schema
}

// Registry holds the tools one specialist bundle exposes.
type Registry struct {
	source string
	mu     sync.RWMutex
	tools  map[string]*Tool
}

// NewRegistry creates an empty registry. source names this server in audit
// records and StandardResult.Source (e.g. "recon", "github").
func NewRegistry(source string) *Registry {
	return &Registry{source: source, tools: make(map[string]*Tool)}
}

// Register compiles the tool's schema and adds it to the registry.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if len(t.Schema) > 0 {
		compiler := jsonschema.NewCompiler()
		const resourceName = "schema.json"
		if err := compiler.AddResource(resourceName, bytesReader(t.Schema)); err != nil {
			return fmt.Errorf("tool %s: add schema: %w", t.Name, err)
		}
		compiled, err := compiler.Compile(resourceName)
		if err != nil {
			return fmt.Errorf("tool %s: compile schema: %w", t.Name, err)
		}
		t.compiled = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = &t
	return nil
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Descriptors lists every tool for tools/list.
func (r *Registry) Descriptors() []toolproto.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]toolproto.ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, toolproto.ToolDescriptor{
			Name:             t.Name,
			Description:      t.Description,
			InputSchema:      t.Schema,
			Mutating:         t.Mutating,
			RequiresApproval: t.RequiresApproval,
		})
	}
	return out
}

// Validate checks args against the tool's compiled schema, if any.
func (t *Tool) Validate(args map[string]any) error {
	if t.compiled == nil {
		return nil
	}
	if err := t.compiled.Validate(args); err != nil {
		return &toolproto.ValidationError{Tool: t.Name, Detail: err.Error()}
	}
	return nil
}
