package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldnotes-dev/agentmesh/internal/approval"
	"github.com/fieldnotes-dev/agentmesh/internal/audit"
	"github.com/fieldnotes-dev/agentmesh/internal/cache"
	"github.com/fieldnotes-dev/agentmesh/internal/metrics"
	"github.com/fieldnotes-dev/agentmesh/internal/toolproto"
)

// Dispatcher runs the registry's dispatch pipeline for one tools/call.
type Dispatcher struct {
	Registry *Registry
	Cache    cache.Backend
	Approval *approval.Issuer
	Audit    *audit.Logger

	// Resolver, if set, rejects calls without a repo argument and fills in
	// missing branch/workflow_id/run_id arguments before validation; only
	// the github bundle needs one.
	Resolver *Resolver

	DefaultTimeout  time.Duration
	MutatingTimeout time.Duration
}

// NewDispatcher builds a Dispatcher with sane timeout defaults.
func NewDispatcher(registry *Registry, cacheBackend cache.Backend, issuer *approval.Issuer, auditLogger *audit.Logger) *Dispatcher {
	return &Dispatcher{
		Registry:        registry,
		Cache:           cacheBackend,
		Approval:        issuer,
		Audit:           auditLogger,
		DefaultTimeout:  10 * time.Second,
		MutatingTimeout: 30 * time.Second,
	}
}

// Dispatch validates, authorizes, caches, and invokes one tool call,
// returning the standard envelope the client expects.
func (d *Dispatcher) Dispatch(ctx context.Context, params toolproto.CallToolParams) toolproto.StandardResult {
	start := time.Now()
	source := d.Registry.source

	tool, ok := d.Registry.Get(params.Name)
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues(params.Name, "not_found").Inc()
		return toolproto.Err(source, fmt.Errorf("unknown tool %q", params.Name), time.Since(start))
	}

	var args map[string]any
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return d.fail(ctx, tool, params, start, &toolproto.ValidationError{Tool: tool.Name, Detail: err.Error()})
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	var resolutionEvents []ResolutionEvent
	if d.Resolver != nil {
		resolved, events, err := d.Resolver.Resolve(ctx, tool.Name, args)
		if err != nil {
			return d.fail(ctx, tool, params, start, err)
		}
		args = resolved
		resolutionEvents = events
	}

	if err := tool.Validate(args); err != nil {
		return d.fail(ctx, tool, params, start, err)
	}

	if tool.RequiresApproval {
		if err := d.checkApproval(tool, args, params); err != nil {
			if d.Audit != nil {
				d.Audit.LogToolDenied(ctx, params.SessionID, tool.Name, "", err.Error())
			}
			metrics.ApprovalDecisions.WithLabelValues("denied").Inc()
			return d.fail(ctx, tool, params, start, &toolproto.AuthError{Reason: err.Error()})
		}
		metrics.ApprovalDecisions.WithLabelValues("granted").Inc()
	}

	if d.Audit != nil {
		d.Audit.LogToolInvocation(ctx, params.SessionID, tool.Name, "", args, 1)
	}

	cacheKey := cache.BuildToolCacheKey(source, tool.Name, args)
	if tool.CacheTTL > 0 && d.Cache != nil {
		if raw, ok, _ := d.Cache.Get(ctx, cacheKey); ok {
			metrics.CacheHits.WithLabelValues(tool.Name).Inc()
			result := toolproto.StandardResult{
				Status:     "success",
				Data:       raw,
				Timestamp:  time.Now(),
				Source:     source,
				DurationMs: time.Since(start).Milliseconds(),
				Cache:      toolproto.CacheInfo{Hit: true},
			}
			if d.Audit != nil {
				d.Audit.LogToolCompletion(ctx, params.SessionID, tool.Name, "", true, true, time.Since(start))
			}
			return result
		}
		metrics.CacheMisses.WithLabelValues(tool.Name).Inc()
	}

	timeout := d.DefaultTimeout
	if tool.Mutating {
		timeout = d.MutatingTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := tool.Handler(callCtx, args)
	duration := time.Since(start)

	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(tool.Name, "error").Inc()
		metrics.ToolCallDuration.WithLabelValues(tool.Name).Observe(duration.Seconds())
		if d.Audit != nil {
			d.Audit.LogToolCompletion(ctx, params.SessionID, tool.Name, "", false, false, duration)
		}
		return toolproto.Err(source, err, duration)
	}

	if len(resolutionEvents) > 0 {
		data = attachResolutionEvents(data, resolutionEvents)
	}

	result, err := toolproto.OK(source, data, duration, false)
	if err != nil {
		return toolproto.Err(source, err, duration)
	}

	metrics.ToolCallsTotal.WithLabelValues(tool.Name, "success").Inc()
	metrics.ToolCallDuration.WithLabelValues(tool.Name).Observe(duration.Seconds())
	if d.Audit != nil {
		d.Audit.LogToolCompletion(ctx, params.SessionID, tool.Name, "", true, false, duration)
	}
	if tool.CacheTTL > 0 && d.Cache != nil {
		_ = d.Cache.Set(ctx, cacheKey, result.Data, tool.CacheTTL)
	}
	return result
}

func (d *Dispatcher) fail(ctx context.Context, tool *Tool, params toolproto.CallToolParams, start time.Time, err error) toolproto.StandardResult {
	if d.Audit != nil {
		d.Audit.LogToolCompletion(ctx, params.SessionID, tool.Name, "", false, false, time.Since(start))
	}
	return toolproto.Err(d.Registry.source, err, time.Since(start))
}

// attachResolutionEvents folds resolver-filled arguments into the tool's
// result under "__resolution_events", mirroring resolve_parameters' own
// convention of returning events alongside resolved args for the caller to
// surface as trace/stream frames.
func attachResolutionEvents(data any, events []ResolutionEvent) any {
	asMap, ok := data.(map[string]any)
	if !ok {
		return data
	}
	out := make(map[string]any, len(asMap)+1)
	for k, v := range asMap {
		out[k] = v
	}
	eventMaps := make([]map[string]any, 0, len(events))
	for _, e := range events {
		eventMaps = append(eventMaps, map[string]any{"tool": e.Tool, "arg": e.Arg, "value": e.Value})
	}
	out["__resolution_events"] = eventMaps
	return out
}

func (d *Dispatcher) checkApproval(tool *Tool, args map[string]any, params toolproto.CallToolParams) error {
	if d.Approval == nil {
		return fmt.Errorf("approval required but no approval issuer configured")
	}
	if params.ApprovalToken == "" {
		return fmt.Errorf("approval token required for %s", tool.Name)
	}
	return d.Approval.Validate(params.ApprovalToken, tool.Name, args, params.SessionID)
}
