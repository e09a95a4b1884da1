package tool

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const instructions = "MCP server for Azure DevOps Boards. Workflow: 1) Use set_story to pick the User Story you are working on, " +
	"2) Use task_create / task_update to track work as child Tasks, 3) Use task_list or task_list_mine to review progress, " +
	"4) Use story_resolve when the implementation is complete."

// NewMCPServer exposes every router tool on an MCP server. Arguments are
// passed through as raw JSON so the router does its own validation.
func NewMCPServer(r *Router, version string) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "mcp-adotask",
			Title:   "Azure DevOps Task MCP Server",
			Version: version,
		},
		&mcp.ServerOptions{
			Instructions: instructions,
		},
	)
	for _, t := range r.Tools() {
		server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Title:       t.Title,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, r.toolHandler(t.Name))
	}
	return server
}

func (r *Router) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: r.Call(ctx, name, req.Params.Arguments)},
			},
		}, nil
	}
}
