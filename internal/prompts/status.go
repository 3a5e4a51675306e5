package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the agi-status MCP prompt.
// It instructs the AI to report on the coordinator and the learning history.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("agi-status",
		mcp.WithPromptDescription(
			"Check how the system is doing: agent load, learning maturity, "+
				"detected patterns and recent self-modifications.",
		),
	)
}

// Handle processes the agi-status prompt request.
func (p *StatusPrompt) Handle(_ context.Context, _ mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "AGI System Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `agi_get_system_status`, `agi_get_learning_summary`, " +
						"`agi_detect_patterns` and `agi_get_improvement_history`, " +
						"and read the `agi://status` resource for skills, A/B tests and goals.\n\n" +
						"Then:\n" +
						"1. Summarize agent utilization and which agents are busiest\n" +
						"2. Point out any failure or slowness patterns\n" +
						"3. List recent modifications and whether their proofs passed\n" +
						"4. Note running A/B tests and unfinished goals\n" +
						"5. Suggest what to do next",
				),
			},
		},
	}, nil
}
