package tools

import (
	"context"

	"github.com/HendryAvila/agi-mcp/internal/envelope"
	"github.com/HendryAvila/agi-mcp/internal/learning"
)

// recordOutcome handles agi_record_outcome. The outcome is stamped with the
// current time.
func recordOutcome(l Learner) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		o := learning.TaskOutcome{
			TaskID:          args.String("task_id"),
			TaskType:        args.String("task_type"),
			AgentUsed:       args.String("agent_used"),
			Success:         args.Bool("success"),
			ExecutionTimeMs: int64(args.Int("execution_time_ms")),
			ErrorMessage:    args.String("error_message"),
			Context:         args.Object("context"),
			Timestamp:       timeNow().UTC(),
		}
		if q, ok := args.Float("quality_score"); ok {
			o.QualityScore = &q
		}

		if err := l.RecordOutcome(ctx, o); err != nil {
			return envelope.Envelope{}, err
		}

		return envelope.OK(envelope.Payload{
			"message": "Recorded outcome for task " + o.TaskID,
			"outcome": map[string]any{
				"task_type":         o.TaskType,
				"agent":             o.AgentUsed,
				"success":           o.Success,
				"execution_time_ms": o.ExecutionTimeMs,
			},
		}), nil
	}
}

// recommendAgent handles agi_recommend_agent.
func recommendAgent(l Learner) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		taskType := args.String("task_type")
		agent, confidence, err := l.RecommendAgent(ctx, taskType, args.Object("context"))
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.OK(envelope.Payload{
			"recommended_agent": agent,
			"confidence":        confidence,
			"task_type":         taskType,
		}), nil
	}
}

// detectPatterns handles agi_detect_patterns.
func detectPatterns(l Learner) Handler {
	return func(ctx context.Context, args Args) (envelope.Envelope, error) {
		days := args.Int("lookback_days")
		patterns, err := l.DetectPatterns(ctx, days)
		if err != nil {
			return envelope.Envelope{}, err
		}
		if patterns == nil {
			patterns = []learning.Pattern{}
		}
		return envelope.OK(envelope.Payload{
			"patterns_detected": len(patterns),
			"lookback_days":     days,
			"patterns":          patterns,
		}), nil
	}
}

// learningSummary handles agi_get_learning_summary.
func learningSummary(l Learner) Handler {
	return func(ctx context.Context, _ Args) (envelope.Envelope, error) {
		s, err := l.Summary(ctx)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return envelope.OK(envelope.Payload{"summary": s}), nil
	}
}
