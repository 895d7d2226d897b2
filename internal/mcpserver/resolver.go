package mcpserver

import (
	"context"
	"fmt"
	"sort"

	"github.com/fieldnotes-dev/agentmesh/internal/toolproto"
)

// ResolutionEvent records one parameter the resolver filled in, so the
// orchestrator's trace can show how an argument was derived.
type ResolutionEvent struct {
	Tool  string
	Arg   string
	Value any
}

// ToolExecutor is the minimal surface the resolver needs to ask a
// specialist for the data it resolves defaults from (the current default
// branch, the workflow list, the run list).
type ToolExecutor interface {
	Call(ctx context.Context, tool string, args map[string]any) (map[string]any, error)
}

// Resolver fills in missing tool arguments deterministically, exactly
// mirroring the GitHub bundle's resolver.py: default branch, workflow id
// (by name, or the sole survivor, or an error), and the most recent run id.
type Resolver struct {
	exec ToolExecutor
}

// NewResolver builds a Resolver bound to the executor it asks for defaults.
func NewResolver(exec ToolExecutor) *Resolver {
	return &Resolver{exec: exec}
}

var runIDTools = map[string]bool{
	"get_workflow_run":    true,
	"cancel_workflow_run": true,
	"rerun_workflow":      true,
}

var workflowTools = map[string]bool{
	"trigger_workflow_dispatch": true,
	"get_workflow":              true,
	"list_workflow_runs":        true,
}

var branchDefaultTools = map[string]bool{
	"trigger_workflow_dispatch": true,
	"list_commits":              true,
	"get_file_contents":         true,
}

// Resolve requires a repo argument (it is never filled in) and fills in any
// of branch/workflow_id/run_id that args is missing but the named tool
// needs, returning the filled args and the resolution events emitted along
// the way.
func (r *Resolver) Resolve(ctx context.Context, tool string, args map[string]any) (map[string]any, []ResolutionEvent, error) {
	out := cloneArgs(args)
	var events []ResolutionEvent

	repo, err := r.requireRepo(out)
	if err != nil {
		return nil, nil, err
	}

	if branchDefaultTools[tool] {
		if _, ok := out["branch"]; !ok {
			branch, err := r.resolveDefaultBranch(ctx, repo)
			if err != nil {
				return nil, nil, err
			}
			out["branch"] = branch
			events = append(events, ResolutionEvent{Tool: tool, Arg: "branch", Value: branch})
		}
	}

	if workflowTools[tool] {
		if _, ok := out["workflow_id"]; !ok {
			name, _ := out["workflow_name"].(string)
			id, err := r.resolveWorkflowID(ctx, repo, name)
			if err != nil {
				return nil, nil, err
			}
			out["workflow_id"] = id
			events = append(events, ResolutionEvent{Tool: tool, Arg: "workflow_id", Value: id})
		}
	}

	if runIDTools[tool] {
		if _, ok := out["run_id"]; !ok {
			workflowID, _ := out["workflow_id"].(string)
			runID, err := r.resolveRunID(ctx, repo, workflowID)
			if err != nil {
				return nil, nil, err
			}
			out["run_id"] = runID
			events = append(events, ResolutionEvent{Tool: tool, Arg: "run_id", Value: runID})
		}
	}

	return out, events, nil
}

func (r *Resolver) requireRepo(args map[string]any) (string, error) {
	repo, _ := args["repo"].(string)
	if repo == "" {
		return "", &toolproto.ResolutionError{Tool: "github", Arg: "repo", Why: "repo is required and could not be inferred"}
	}
	return repo, nil
}

func (r *Resolver) resolveDefaultBranch(ctx context.Context, repo string) (string, error) {
	data, err := r.exec.Call(ctx, "tool_get_default_branch", map[string]any{"repo": repo})
	if err != nil {
		return "", &toolproto.ResolutionError{Tool: "github", Arg: "branch", Why: err.Error()}
	}
	branch, _ := data["default_branch"].(string)
	if branch == "" {
		return "", &toolproto.ResolutionError{Tool: "github", Arg: "branch", Why: "default branch lookup returned no value"}
	}
	return branch, nil
}

// resolveWorkflowID mirrors resolver.py's _resolve_workflow_id exactly: a
// given name must match exactly one workflow (case-insensitively) or the
// call fails, never falling back to a
// sole survivor; only when no name is given does workflow count decide
// between auto-resolving to the sole workflow and an ambiguity error.
func (r *Resolver) resolveWorkflowID(ctx context.Context, repo, name string) (string, error) {
	data, err := r.exec.Call(ctx, "tool_list_workflows", map[string]any{"repo": repo})
	if err != nil {
		return "", &toolproto.ResolutionError{Tool: "github", Arg: "workflow_id", Why: err.Error()}
	}
	workflows, _ := data["workflows"].([]any)

	if name != "" {
		var matches []string
		for _, w := range workflows {
			wm, ok := w.(map[string]any)
			if !ok {
				continue
			}
			if wname, _ := wm["name"].(string); equalFold(wname, name) {
				id, _ := wm["id"].(string)
				matches = append(matches, id)
			}
		}
		switch len(matches) {
		case 0:
			return "", &toolproto.ResolutionError{Tool: "github", Arg: "workflow_id", Why: fmt.Sprintf("workflow %q not found", name)}
		case 1:
			return matches[0], nil
		default:
			return "", &toolproto.ResolutionError{Tool: "github", Arg: "workflow_id", Why: fmt.Sprintf("workflow name %q matches multiple workflows; provide workflow_id", name)}
		}
	}

	switch len(workflows) {
	case 0:
		return "", &toolproto.ResolutionError{Tool: "github", Arg: "workflow_id", Why: "no workflows found for this repository"}
	case 1:
		wm, ok := workflows[0].(map[string]any)
		if !ok {
			return "", &toolproto.ResolutionError{Tool: "github", Arg: "workflow_id", Why: "no workflows found for this repository"}
		}
		id, _ := wm["id"].(string)
		if id == "" {
			return "", &toolproto.ResolutionError{Tool: "github", Arg: "workflow_id", Why: "no workflows found for this repository"}
		}
		return id, nil
	default:
		return "", &toolproto.ResolutionError{Tool: "github", Arg: "workflow_id", Why: "multiple workflows found; provide workflow_name or workflow_id"}
	}
}

func (r *Resolver) resolveRunID(ctx context.Context, repo, workflowID string) (string, error) {
	callArgs := map[string]any{"repo": repo}
	if workflowID != "" {
		callArgs["workflow_id"] = workflowID
	}
	data, err := r.exec.Call(ctx, "tool_list_workflow_runs", callArgs)
	if err != nil {
		return "", &toolproto.ResolutionError{Tool: "github", Arg: "run_id", Why: err.Error()}
	}
	runs, _ := data["runs"].([]any)
	if len(runs) == 0 {
		return "", &toolproto.ResolutionError{Tool: "github", Arg: "run_id", Why: "no workflow runs found"}
	}

	type run struct {
		id        string
		createdAt string
	}
	var parsed []run
	for _, raw := range runs {
		rm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := rm["id"].(string)
		createdAt, _ := rm["created_at"].(string)
		parsed = append(parsed, run{id: id, createdAt: createdAt})
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].createdAt > parsed[j].createdAt })
	if len(parsed) == 0 {
		return "", &toolproto.ResolutionError{Tool: "github", Arg: "run_id", Why: "no workflow runs found"}
	}
	return parsed[0].id, nil
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
