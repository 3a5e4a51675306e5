package tools

import (
	"context"

	"github.com/HendryAvila/agi-mcp/internal/envelope"
)

// maxListedSources caps the per-chunk source list in the response.
const maxListedSources = 5

// synthesizeContext handles agi_synthesize_context. The response carries the
// true chunk count but lists the sources of the first few chunks only.
func synthesizeContext(s ContextSynthesizer) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		c, err := s.Synthesize(ctx, args.String("query"), args.Strings("source_types"), args.Int("target_tokens"))
		if err != nil {
			return envelope.Envelope{}, err
		}

		n := min(len(c.Chunks), maxListedSources)
		sources := make([]map[string]any, n)
		for i, ch := range c.Chunks[:n] {
			sources[i] = map[string]any{
				"type":      string(ch.Source),
				"relevance": ch.Relevance,
			}
		}

		return envelope.OK(envelope.Payload{
			"context": map[string]any{
				"chunks":            len(c.Chunks),
				"total_tokens":      c.TotalTokens,
				"compression_ratio": c.CompressionRatio,
				"sources":           sources,
			},
		}), nil
	}
}
