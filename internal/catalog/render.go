package catalog

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// JSONSchema renders the input schema of op as a JSON Schema object.
// It is used both for argument validation and for the catalog resource.
func JSONSchema(op Operation) map[string]any {
	s := SchemaFor(op)
	props := make(map[string]any, len(s.Fields))
	required := []any{}

	for _, f := range s.Fields {
		p := map[string]any{
			"type":        string(f.Type),
			"description": f.Description,
		}
		if f.HasDefault() {
			p["default"] = f.Default
		}
		if len(f.Enum) > 0 {
			enum := make([]any, len(f.Enum))
			for i, e := range f.Enum {
				enum[i] = e
			}
			p["enum"] = enum
		}
		if f.Type == TypeArray {
			p["items"] = map[string]any{"type": string(f.Items)}
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Tool renders op as an MCP tool definition. Its input schema is the
// JSONSchema properties, so tools/list and argument validation agree.
func Tool(op Operation) mcp.Tool {
	d := Describe(op)
	tool := mcp.NewTool(d.Name, mcp.WithDescription(d.Description))
	tool.InputSchema = mcp.ToolInputSchema{
		Type:       "object",
		Properties: JSONSchema(op)["properties"].(map[string]any),
		Required:   d.Schema.RequiredNames(),
	}
	return tool
}
