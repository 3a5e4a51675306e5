package tools

import (
	"context"
	"time"

	"github.com/HendryAvila/agi-mcp/internal/catalog"
	"github.com/HendryAvila/agi-mcp/internal/envelope"
)

// Handler serves one operation. A returned error becomes an error envelope
// carrying err.Error() verbatim.
type Handler func(ctx context.Context, args Args) (envelope.Envelope, error)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Handlers returns the handler table, indexed by operation.
func Handlers(sub Subsystems) [catalog.Count]Handler {
	var h [catalog.Count]Handler

	h[catalog.RecordOutcome] = recordOutcome(sub.Learner)
	h[catalog.RecommendAgent] = recommendAgent(sub.Learner)
	h[catalog.DetectPatterns] = detectPatterns(sub.Learner)
	h[catalog.GetLearningSummary] = learningSummary(sub.Learner)

	h[catalog.ExecuteTask] = executeTask(sub.Coordinator)
	h[catalog.GetSystemStatus] = systemStatus(sub.Coordinator)

	h[catalog.RegisterSkill] = registerSkill(sub.Skills)
	h[catalog.StartABTest] = startABTest(sub.Skills)
	h[catalog.PromoteSkill] = promoteSkill(sub.Skills)

	h[catalog.ExecuteGoal] = executeGoal(sub.Goals)
	h[catalog.GetGoalProgress] = goalProgress(sub.Goals)

	h[catalog.SynthesizeContext] = synthesizeContext(sub.Synthesizer)

	h[catalog.ProposeModification] = proposeModification(sub.Modifier)
	h[catalog.ApplyModification] = applyModification(sub.Modifier)
	h[catalog.GetImprovementHistory] = improvementHistory(sub.Modifier)

	return h
}
