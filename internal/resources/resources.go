// Package resources implements MCP resource handlers.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (agi://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/agi-mcp/internal/catalog"
)

// CatalogURI addresses the operation catalog.
const CatalogURI = "agi://catalog"

// Entry is one operation as listed by the catalog resource.
type Entry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Handler serves the catalog resource.
type Handler struct{}

// NewHandler creates a resource Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// CatalogResource returns the MCP resource definition for the catalog.
func (h *Handler) CatalogResource() mcp.Resource {
	return mcp.NewResource(
		CatalogURI,
		"AGI Operation Catalog",
		mcp.WithResourceDescription("Every agi_ operation with its description and input schema"),
		mcp.WithMIMEType("application/json"),
	)
}

// Entries lists the catalog in operation order.
func Entries() []Entry {
	ops := catalog.Operations()
	out := make([]Entry, 0, len(ops))
	for _, op := range ops {
		d := catalog.Describe(op)
		out = append(out, Entry{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: catalog.JSONSchema(op),
		})
	}
	return out
}

// HandleCatalog returns the catalog as JSON.
func (h *Handler) HandleCatalog(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(Entries(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling catalog: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
