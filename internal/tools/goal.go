package tools

import (
	"context"

	"github.com/HendryAvila/agi-mcp/internal/envelope"
)

// executeGoal handles agi_execute_goal.
func executeGoal(g GoalPlanner) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		res, err := g.ExecuteGoal(ctx, args.String("goal_description"), args.Object("context"))
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.OK(envelope.Payload{"result": res}), nil
	}
}

// goalProgress handles agi_get_goal_progress.
func goalProgress(g GoalPlanner) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		p, err := g.Progress(ctx, args.String("goal_id"))
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.OK(envelope.Payload{"progress": p}), nil
	}
}
