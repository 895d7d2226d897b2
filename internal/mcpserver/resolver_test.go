package mcpserver

import (
	"context"
	"testing"
)

// fakeExecutor scripts ToolExecutor.Call by tool name, mirroring the
// GitHub-Multi-Agent resolver.py tests' fixture shape.
type fakeExecutor struct {
	responses map[string]map[string]any
	errs      map[string]error
}

func (f fakeExecutor) Call(_ context.Context, tool string, _ map[string]any) (map[string]any, error) {
	if err, ok := f.errs[tool]; ok {
		return nil, err
	}
	return f.responses[tool], nil
}

func TestResolverFillsDefaultBranch(t *testing.T) {
	exec := fakeExecutor{responses: map[string]map[string]any{
		"tool_get_default_branch": {"default_branch": "main"},
	}}
	r := NewResolver(exec)

	args, events, err := r.Resolve(context.Background(), "trigger_workflow_dispatch", map[string]any{"repo": "acme/widgets"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if args["branch"] != "main" {
		t.Errorf("branch = %v, want main", args["branch"])
	}
	if len(events) != 1 || events[0].Arg != "branch" {
		t.Errorf("events = %+v, want one branch event", events)
	}
}

func TestResolverLeavesExplicitBranchAlone(t *testing.T) {
	exec := fakeExecutor{responses: map[string]map[string]any{
		"tool_get_default_branch": {"default_branch": "main"},
	}}
	r := NewResolver(exec)

	args, events, err := r.Resolve(context.Background(), "trigger_workflow_dispatch", map[string]any{
		"repo": "acme/widgets", "branch": "release/2.0",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if args["branch"] != "release/2.0" {
		t.Errorf("branch = %v, want release/2.0 unchanged", args["branch"])
	}
	if len(events) != 0 {
		t.Errorf("events = %+v, want none when branch already supplied", events)
	}
}

func TestResolverRequiresRepo(t *testing.T) {
	r := NewResolver(fakeExecutor{})
	_, _, err := r.Resolve(context.Background(), "trigger_workflow_dispatch", map[string]any{})
	if err == nil {
		t.Fatalf("Resolve() without a repo returned nil error")
	}
}

func TestResolverResolvesWorkflowIDByName(t *testing.T) {
	exec := fakeExecutor{responses: map[string]map[string]any{
		"tool_list_workflows": {"workflows": []any{
			map[string]any{"name": "CI", "id": "1"},
			map[string]any{"name": "Deploy", "id": "2"},
		}},
	}}
	r := NewResolver(exec)

	args, events, err := r.Resolve(context.Background(), "get_workflow", map[string]any{
		"repo": "acme/widgets", "workflow_name": "deploy",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if args["workflow_id"] != "2" {
		t.Errorf("workflow_id = %v, want 2", args["workflow_id"])
	}
	if len(events) != 1 {
		t.Errorf("events = %+v, want one workflow_id event", events)
	}
}

func TestResolverErrorsOnAmbiguousWorkflowName(t *testing.T) {
	exec := fakeExecutor{responses: map[string]map[string]any{
		"tool_list_workflows": {"workflows": []any{
			map[string]any{"name": "Deploy", "id": "1"},
			map[string]any{"name": "deploy", "id": "2"},
		}},
	}}
	r := NewResolver(exec)

	_, _, err := r.Resolve(context.Background(), "get_workflow", map[string]any{
		"repo": "acme/widgets", "workflow_name": "Deploy",
	})
	if err == nil {
		t.Fatalf("Resolve() with an ambiguous workflow name returned nil error")
	}
}

func TestResolverErrorsOnUnmatchedWorkflowName(t *testing.T) {
	exec := fakeExecutor{responses: map[string]map[string]any{
		"tool_list_workflows": {"workflows": []any{
			map[string]any{"name": "Release", "id": "9"},
		}},
	}}
	r := NewResolver(exec)

	_, _, err := r.Resolve(context.Background(), "get_workflow", map[string]any{
		"repo": "acme/widgets", "workflow_name": "nonexistent",
	})
	if err == nil {
		t.Fatalf("Resolve() with an unmatched workflow_name returned nil error, want an error even with a sole workflow present")
	}
}

func TestResolverResolvesSoleWorkflowWhenNameAbsent(t *testing.T) {
	exec := fakeExecutor{responses: map[string]map[string]any{
		"tool_list_workflows": {"workflows": []any{
			map[string]any{"name": "Release", "id": "9"},
		}},
	}}
	r := NewResolver(exec)

	args, events, err := r.Resolve(context.Background(), "get_workflow", map[string]any{"repo": "acme/widgets"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if args["workflow_id"] != "9" {
		t.Errorf("workflow_id = %v, want 9 (sole workflow, auto-resolved)", args["workflow_id"])
	}
	if len(events) != 1 || events[0].Arg != "workflow_id" {
		t.Errorf("events = %+v, want one workflow_id event", events)
	}
}

func TestResolverErrorsOnNoWorkflowsWhenNameAbsent(t *testing.T) {
	exec := fakeExecutor{responses: map[string]map[string]any{
		"tool_list_workflows": {"workflows": []any{}},
	}}
	r := NewResolver(exec)

	_, _, err := r.Resolve(context.Background(), "get_workflow", map[string]any{"repo": "acme/widgets"})
	if err == nil {
		t.Fatalf("Resolve() with zero workflows and no name returned nil error")
	}
}

func TestResolverErrorsOnMultipleWorkflowsWhenNameAbsent(t *testing.T) {
	exec := fakeExecutor{responses: map[string]map[string]any{
		"tool_list_workflows": {"workflows": []any{
			map[string]any{"name": "CI", "id": "1"},
			map[string]any{"name": "Deploy", "id": "2"},
		}},
	}}
	r := NewResolver(exec)

	_, _, err := r.Resolve(context.Background(), "get_workflow", map[string]any{"repo": "acme/widgets"})
	if err == nil {
		t.Fatalf("Resolve() with multiple workflows and no name returned nil error")
	}
}

func TestResolverResolvesMostRecentRunID(t *testing.T) {
	exec := fakeExecutor{responses: map[string]map[string]any{
		"tool_list_workflow_runs": {"runs": []any{
			map[string]any{"id": "100", "created_at": "2026-01-01T00:00:00Z"},
			map[string]any{"id": "102", "created_at": "2026-03-01T00:00:00Z"},
			map[string]any{"id": "101", "created_at": "2026-02-01T00:00:00Z"},
		}},
	}}
	r := NewResolver(exec)

	args, events, err := r.Resolve(context.Background(), "get_workflow_run", map[string]any{"repo": "acme/widgets"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if args["run_id"] != "102" {
		t.Errorf("run_id = %v, want 102 (most recent)", args["run_id"])
	}
	if len(events) != 1 || events[0].Arg != "run_id" {
		t.Errorf("events = %+v, want one run_id event", events)
	}
}

func TestResolverErrorsOnNoWorkflowRuns(t *testing.T) {
	exec := fakeExecutor{responses: map[string]map[string]any{
		"tool_list_workflow_runs": {"runs": []any{}},
	}}
	r := NewResolver(exec)

	_, _, err := r.Resolve(context.Background(), "get_workflow_run", map[string]any{"repo": "acme/widgets"})
	if err == nil {
		t.Fatalf("Resolve() with no workflow runs returned nil error")
	}
}

func TestResolverLeavesUnrelatedToolsAlone(t *testing.T) {
	r := NewResolver(fakeExecutor{})
	args, events, err := r.Resolve(context.Background(), "list_issues", map[string]any{"repo": "acme/widgets"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %+v, want none for a tool with no resolved defaults", events)
	}
	if args["repo"] != "acme/widgets" {
		t.Errorf("repo = %v, want unchanged", args["repo"])
	}
}
