package gateway

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/agi-mcp/internal/catalog"
)

// MCPHandler adapts op to an mcp-go tool handler. The envelope travels as
// the single text content; error envelopes are also flagged isError.
func (d *Dispatcher) MCPHandler(op catalog.Operation) server.ToolHandlerFunc {
	name := op.String()
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := d.Dispatch(ctx, name, req.GetArguments())
		if env.IsError() {
			return mcp.NewToolResultError(env.Text()), nil
		}
		return mcp.NewToolResultText(env.Text()), nil
	}
}

// Register adds every catalog operation to s, in catalog order.
func (d *Dispatcher) Register(s *server.MCPServer) {
	for _, op := range catalog.Operations() {
		s.AddTool(catalog.Tool(op), d.MCPHandler(op))
	}
}
