// Package specialists holds small glue shared by the cmd/toolserver
// entrypoint across bundles: an in-process ToolExecutor so a bundle's own
// Resolver can call its own registered tools without a network round trip.
package specialists

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldnotes-dev/agentmesh/internal/mcpserver"
	"github.com/fieldnotes-dev/agentmesh/internal/toolproto"
)

// InProcessExecutor implements mcpserver.ToolExecutor by dispatching
// directly against a Dispatcher in the same process, for bundles (like
// github) whose Resolver needs to call sibling tools in its own registry.
type InProcessExecutor struct {
	Dispatcher *mcpserver.Dispatcher
}

func (e InProcessExecutor) Call(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	result := e.Dispatcher.Dispatch(ctx, toolproto.CallToolParams{Name: tool, Arguments: argsJSON})
	if result.Status != "success" {
		return nil, fmt.Errorf("%s: %s", tool, result.Error)
	}
	var data map[string]any
	if len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, &data); err != nil {
			return nil, err
		}
	}
	return data, nil
}
