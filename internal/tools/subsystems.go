// Package tools implements one handler per catalog operation.
//
// Each handler receives normalized arguments, calls exactly one subsystem
// method and shapes its result into an envelope. Handlers depend on the
// narrow interfaces below, never on the concrete subsystems, so the
// composition root decides what backs them and tests can pass fakes.
package tools

import (
	"context"

	"github.com/HendryAvila/agi-mcp/internal/coordinator"
	"github.com/HendryAvila/agi-mcp/internal/goals"
	"github.com/HendryAvila/agi-mcp/internal/learning"
	"github.com/HendryAvila/agi-mcp/internal/modification"
	"github.com/HendryAvila/agi-mcp/internal/skills"
	"github.com/HendryAvila/agi-mcp/internal/synthesis"
)

// Learner records outcomes and recommends agents.
type Learner interface {
	RecordOutcome(ctx context.Context, o learning.TaskOutcome) error
	RecommendAgent(ctx context.Context, taskType string, taskCtx map[string]any) (string, float64, error)
	DetectPatterns(ctx context.Context, lookbackDays int) ([]learning.Pattern, error)
	Summary(ctx context.Context) (*learning.Summary, error)
}

// Coordinator runs tasks across agents.
type Coordinator interface {
	ExecuteTask(ctx context.Context, description, taskType string) (*coordinator.ExecutionResult, error)
	Status(ctx context.Context) (*coordinator.SystemStatus, error)
}

// SkillEvolver versions, tests and promotes skills.
type SkillEvolver interface {
	RegisterSkill(ctx context.Context, name, code, description, version string) (*skills.SkillVersion, error)
	StartABTest(ctx context.Context, name, versionA, versionB string, splitRatio float64) (string, error)
	PromoteVersion(ctx context.Context, name, version string) (bool, error)
}

// GoalPlanner decomposes goals and tracks their progress.
type GoalPlanner interface {
	ExecuteGoal(ctx context.Context, description string, goalCtx map[string]any) (*goals.GoalResult, error)
	Progress(ctx context.Context, goalID string) (*goals.Progress, error)
}

// ContextSynthesizer builds compressed context for a query.
type ContextSynthesizer interface {
	Synthesize(ctx context.Context, query string, sourceTypes []string, targetTokens int) (*synthesis.Context, error)
}

// Modifier tracks proposed self-modifications.
type Modifier interface {
	ProposeModification(ctx context.Context, before, after string, modType modification.Type, description string) (*modification.Modification, error)
	History(ctx context.Context, limit int) ([]modification.Record, error)
	Find(ctx context.Context, id string) (*modification.Record, error)
}

// Subsystems holds the six long-lived subsystem handles shared by every call.
type Subsystems struct {
	Learner     Learner
	Coordinator Coordinator
	Skills      SkillEvolver
	Goals       GoalPlanner
	Synthesizer ContextSynthesizer
	Modifier    Modifier
}
