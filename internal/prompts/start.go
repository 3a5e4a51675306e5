// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the agi-start MCP prompt.
// It turns a goal into a planned, tracked run through the gateway.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("agi-start",
		mcp.WithPromptDescription(
			"Work toward a goal with the AGI tools: gather context, "+
				"plan the goal, execute its tasks and record how they went.",
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What you want to achieve"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("task_type",
			mcp.ArgumentDescription("Task type used for agent selection. Default: general"),
		),
	)
}

// Handle processes the agi-start prompt request.
func (p *StartPrompt) Handle(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	goal := strings.TrimSpace(req.Params.Arguments["goal"])
	if goal == "" {
		return nil, fmt.Errorf("argument %q is required", "goal")
	}
	taskType := strings.TrimSpace(req.Params.Arguments["task_type"])
	if taskType == "" {
		taskType = "general"
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Start goal: %s", goal),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"My goal: %s\n\n"+
						"Please:\n"+
						"1. Run `agi_synthesize_context` with query=%q to collect what is already known\n"+
						"2. Run `agi_recommend_agent` with task_type=%q\n"+
						"3. Run `agi_execute_goal` with the goal and any language or framework I mention\n"+
						"4. Work through the planned tasks, checking `agi_get_goal_progress` as you go\n"+
						"5. After each task, call `agi_record_outcome` with the real result so future recommendations improve",
					goal, goal, taskType,
				)),
			},
		},
	}, nil
}
