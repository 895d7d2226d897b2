package github

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fieldnotes-dev/agentmesh/internal/mcpserver"
)

// Register adds the GitHub operations bundle's tools to r. The names cover
// the "tool_"-prefixed lookups internal/mcpserver.Resolver calls directly
// and the operations its runIDTools/branchDefaultTools maps key on, plus
// trigger_workflow_dispatch from workflowTools; workflowTools' other two
// names (get_workflow, list_workflow_runs) have no tool here.
func Register(r *mcpserver.Registry, client *Client) error {
	b := &bundle{client: client}

	tools := []mcpserver.Tool{
		{
			Name:        "tool_get_default_branch",
			Description: "Look up a repository's default branch.",
			Schema:      schemaRepo,
			Handler:     b.getDefaultBranch,
			CacheTTL:    0,
		},
		{
			Name:        "tool_list_workflows",
			Description: "List a repository's GitHub Actions workflows.",
			Schema:      schemaRepo,
			Handler:     b.listWorkflows,
		},
		{
			Name:        "tool_list_workflow_runs",
			Description: "List recent runs for a workflow.",
			Schema:      schemaWorkflowRuns,
			Handler:     b.listWorkflowRuns,
		},
		{
			Name:        "get_workflow_run",
			Description: "Fetch one workflow run's status and conclusion.",
			Schema:      schemaRunID,
			Handler:     b.getWorkflowRun,
		},
		{
			Name:        "get_artifacts_for_run",
			Description: "List artifacts produced by a workflow run.",
			Schema:      schemaRunID,
			Handler:     b.getArtifactsForRun,
		},
		{
			Name:        "list_commits",
			Description: "List recent commits on a branch.",
			Schema:      schemaRepoBranch,
			Handler:     b.listCommits,
		},
		{
			Name:        "get_file_contents",
			Description: "Fetch a file's contents at a given branch.",
			Schema:      schemaFileContents,
			Handler:     b.getFileContents,
		},
		{
			Name:             "trigger_workflow_dispatch",
			Description:      "Trigger a workflow_dispatch run on a branch.",
			Schema:           schemaDispatch,
			Mutating:         true,
			RequiresApproval: true,
			Handler:          b.triggerWorkflowDispatch,
		},
		{
			Name:             "cancel_workflow_run",
			Description:      "Cancel a running workflow run.",
			Schema:           schemaRunID,
			Mutating:         true,
			RequiresApproval: true,
			Handler:          b.cancelWorkflowRun,
		},
		{
			Name:             "rerun_workflow",
			Description:      "Re-run a completed workflow run.",
			Schema:           schemaRunID,
			Mutating:         true,
			RequiresApproval: true,
			Handler:          b.rerunWorkflow,
		},
	}

	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

type bundle struct {
	client *Client
}

func splitRepo(args map[string]any) (owner, repo string, err error) {
	full, _ := args["repo"].(string)
	full = strings.TrimSpace(full)
	parts := strings.SplitN(full, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repo must be \"owner/name\", got %q", full)
	}
	return parts[0], parts[1], nil
}

func (b *bundle) getDefaultBranch(ctx context.Context, args map[string]any) (any, error) {
	owner, repo, err := splitRepo(args)
	if err != nil {
		return nil, err
	}
	raw, err := b.client.request(ctx, "GET", fmt.Sprintf("/repos/%s/%s", owner, repo), nil, nil)
	if err != nil {
		return nil, err
	}
	data, _ := raw.(map[string]any)
	branch, _ := data["default_branch"].(string)
	if branch == "" {
		return nil, fmt.Errorf("repository %s/%s has no default branch reported", owner, repo)
	}
	return map[string]any{"default_branch": branch}, nil
}

func (b *bundle) listWorkflows(ctx context.Context, args map[string]any) (any, error) {
	owner, repo, err := splitRepo(args)
	if err != nil {
		return nil, err
	}
	raw, err := b.client.request(ctx, "GET", fmt.Sprintf("/repos/%s/%s/actions/workflows", owner, repo),
		map[string]string{"per_page": "100"}, nil)
	if err != nil {
		return nil, err
	}
	data, _ := raw.(map[string]any)
	items, _ := data["workflows"].([]any)

	workflows := make([]any, 0, len(items))
	for _, raw := range items {
		wf, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id := ""
		if n, ok := wf["id"].(float64); ok {
			id = strconv.FormatInt(int64(n), 10)
		}
		workflows = append(workflows, map[string]any{
			"id":    id,
			"name":  wf["name"],
			"state": wf["state"],
			"path":  wf["path"],
		})
	}
	return map[string]any{"workflows": workflows}, nil
}

func (b *bundle) listWorkflowRuns(ctx context.Context, args map[string]any) (any, error) {
	owner, repo, err := splitRepo(args)
	if err != nil {
		return nil, err
	}
	workflowID, _ := args["workflow_id"].(string)
	path := fmt.Sprintf("/repos/%s/%s/actions/runs", owner, repo)
	if workflowID != "" {
		path = fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/runs", owner, repo, workflowID)
	}

	raw, err := b.client.request(ctx, "GET", path, map[string]string{"per_page": "50"}, nil)
	if err != nil {
		return nil, err
	}
	data, _ := raw.(map[string]any)
	items, _ := data["workflow_runs"].([]any)

	runs := make([]any, 0, len(items))
	for _, raw := range items {
		run, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id := ""
		if n, ok := run["id"].(float64); ok {
			id = strconv.FormatInt(int64(n), 10)
		}
		runs = append(runs, map[string]any{
			"id":         id,
			"status":     run["status"],
			"conclusion": run["conclusion"],
			"created_at": run["created_at"],
		})
	}
	sort.Slice(runs, func(i, j int) bool {
		ri, _ := runs[i].(map[string]any)
		rj, _ := runs[j].(map[string]any)
		ci, _ := ri["created_at"].(string)
		cj, _ := rj["created_at"].(string)
		return ci > cj
	})
	return map[string]any{"runs": runs}, nil
}

func (b *bundle) getWorkflowRun(ctx context.Context, args map[string]any) (any, error) {
	owner, repo, err := splitRepo(args)
	if err != nil {
		return nil, err
	}
	runID, _ := args["run_id"].(string)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	raw, err := b.client.request(ctx, "GET", fmt.Sprintf("/repos/%s/%s/actions/runs/%s", owner, repo, runID), nil, nil)
	if err != nil {
		return nil, err
	}
	data, _ := raw.(map[string]any)
	return map[string]any{
		"id":         data["id"],
		"status":     data["status"],
		"conclusion": data["conclusion"],
		"html_url":   data["html_url"],
	}, nil
}

func (b *bundle) getArtifactsForRun(ctx context.Context, args map[string]any) (any, error) {
	owner, repo, err := splitRepo(args)
	if err != nil {
		return nil, err
	}
	runID, _ := args["run_id"].(string)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	raw, err := b.client.request(ctx, "GET", fmt.Sprintf("/repos/%s/%s/actions/runs/%s/artifacts", owner, repo, runID), nil, nil)
	if err != nil {
		return nil, err
	}
	data, _ := raw.(map[string]any)
	return map[string]any{"artifacts": data["artifacts"]}, nil
}

func (b *bundle) listCommits(ctx context.Context, args map[string]any) (any, error) {
	owner, repo, err := splitRepo(args)
	if err != nil {
		return nil, err
	}
	branch, _ := args["branch"].(string)
	raw, err := b.client.request(ctx, "GET", fmt.Sprintf("/repos/%s/%s/commits", owner, repo),
		map[string]string{"sha": branch, "per_page": "30"}, nil)
	if err != nil {
		return nil, err
	}
	items, _ := raw.([]any)
	commits := make([]any, 0, len(items))
	for _, raw := range items {
		c, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		commit, _ := c["commit"].(map[string]any)
		message := ""
		if commit != nil {
			message, _ = commit["message"].(string)
		}
		commits = append(commits, map[string]any{"sha": c["sha"], "message": message})
	}
	return map[string]any{"commits": commits}, nil
}

func (b *bundle) getFileContents(ctx context.Context, args map[string]any) (any, error) {
	owner, repo, err := splitRepo(args)
	if err != nil {
		return nil, err
	}
	path, _ := args["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	branch, _ := args["branch"].(string)
	query := map[string]string{}
	if branch != "" {
		query["ref"] = branch
	}
	raw, err := b.client.request(ctx, "GET", fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, path), query, nil)
	if err != nil {
		return nil, err
	}
	data, _ := raw.(map[string]any)
	return map[string]any{
		"path":     data["path"],
		"sha":      data["sha"],
		"content":  data["content"],
		"encoding": data["encoding"],
	}, nil
}

func (b *bundle) triggerWorkflowDispatch(ctx context.Context, args map[string]any) (any, error) {
	owner, repo, err := splitRepo(args)
	if err != nil {
		return nil, err
	}
	workflowID, _ := args["workflow_id"].(string)
	if workflowID == "" {
		return nil, fmt.Errorf("workflow_id is required")
	}
	ref, _ := args["ref"].(string)
	if ref == "" {
		return nil, fmt.Errorf("ref is required")
	}
	inputs, _ := args["inputs"].(map[string]any)

	_, err = b.client.request(ctx, "POST", fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/dispatches", owner, repo, workflowID),
		nil, map[string]any{"ref": ref, "inputs": inputs})
	if err != nil {
		return nil, err
	}
	return map[string]any{"dispatched": true, "workflow_id": workflowID, "ref": ref}, nil
}

func (b *bundle) cancelWorkflowRun(ctx context.Context, args map[string]any) (any, error) {
	owner, repo, err := splitRepo(args)
	if err != nil {
		return nil, err
	}
	runID, _ := args["run_id"].(string)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	_, err = b.client.request(ctx, "POST", fmt.Sprintf("/repos/%s/%s/actions/runs/%s/cancel", owner, repo, runID), nil, nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{"cancelled": true, "run_id": runID}, nil
}

func (b *bundle) rerunWorkflow(ctx context.Context, args map[string]any) (any, error) {
	owner, repo, err := splitRepo(args)
	if err != nil {
		return nil, err
	}
	runID, _ := args["run_id"].(string)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	_, err = b.client.request(ctx, "POST", fmt.Sprintf("/repos/%s/%s/actions/runs/%s/rerun", owner, repo, runID), nil, nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{"rerun": true, "run_id": runID}, nil
}

var schemaRepo = []byte(`{
  "type": "object",
  "properties": {"repo": {"type": "string"}},
  "required": ["repo"]
}`)

var schemaRepoBranch = []byte(`{
  "type": "object",
  "properties": {
    "repo": {"type": "string"},
    "branch": {"type": "string"}
  },
  "required": ["repo"]
}`)

var schemaWorkflowRuns = []byte(`{
  "type": "object",
  "properties": {
    "repo": {"type": "string"},
    "workflow_id": {"type": "string"},
    "workflow_name": {"type": "string"}
  },
  "required": ["repo"]
}`)

var schemaRunID = []byte(`{
  "type": "object",
  "properties": {
    "repo": {"type": "string"},
    "run_id": {"type": "string"}
  },
  "required": ["repo", "run_id"]
}`)

var schemaFileContents = []byte(`{
  "type": "object",
  "properties": {
    "repo": {"type": "string"},
    "path": {"type": "string"},
    "branch": {"type": "string"}
  },
  "required": ["repo", "path"]
}`)

var schemaDispatch = []byte(`{
  "type": "object",
  "properties": {
    "repo": {"type": "string"},
    "workflow_id": {"type": "string"},
    "workflow_name": {"type": "string"},
    "ref": {"type": "string"},
    "inputs": {"type": "object"}
  },
  "required": ["repo"]
}`)
