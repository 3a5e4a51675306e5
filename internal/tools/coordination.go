package tools

import (
	"context"

	"github.com/HendryAvila/agi-mcp/internal/envelope"
)

// executeTask handles agi_execute_task.
func executeTask(c Coordinator) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		res, err := c.ExecuteTask(ctx, args.String("description"), args.String("task_type"))
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.OK(envelope.Payload{"result": res}), nil
	}
}

// systemStatus handles agi_get_system_status.
func systemStatus(c Coordinator) Handler {
	return func(ctx context.Context, _ Args) (envelope.Envelope, error) {
		st, err := c.Status(ctx)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.OK(envelope.Payload{"system_status": st}), nil
	}
}
