// Package goals turns natural language goals into ordered task plans and
// tracks their progress.
//
// A goal is classified by type (feature, fix, refactor, ...) and complexity.
// The pair selects a phase flow from FlowRegistry; each phase becomes a task
// with an estimate. Goals are persisted as JSON files, one directory per goal:
//
//	<root>/goals/<goal-id>/goal.json
package goals

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGoalNotFound is returned when a goal id has no record.
var ErrGoalNotFound = errors.New("goal not found")

// --- Goal type enum ---

// GoalType categorizes what kind of work a goal represents.
type GoalType string

const (
	TypeFeature       GoalType = "feature"
	TypeFix           GoalType = "fix"
	TypeRefactor      GoalType = "refactor"
	TypeOptimization  GoalType = "optimization"
	TypeResearch      GoalType = "research"
	TypeDocumentation GoalType = "documentation"
)

var validTypes = map[GoalType]bool{
	TypeFeature:       true,
	TypeFix:           true,
	TypeRefactor:      true,
	TypeOptimization:  true,
	TypeResearch:      true,
	TypeDocumentation: true,
}

// ValidateType returns an error if the type is not recognized.
func ValidateType(t GoalType) error {
	if !validTypes[t] {
		return fmt.Errorf("invalid goal type %q: must be one of: feature, fix, refactor, optimization, research, documentation", t)
	}
	return nil
}

// --- Complexity enum ---

// Complexity controls how many phases a goal goes through.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

var validComplexities = map[Complexity]bool{
	ComplexitySimple:   true,
	ComplexityModerate: true,
	ComplexityComplex:  true,
}

// ValidateComplexity returns an error if the complexity is not recognized.
func ValidateComplexity(c Complexity) error {
	if !validComplexities[c] {
		return fmt.Errorf("invalid complexity %q: must be one of: simple, moderate, complex", c)
	}
	return nil
}

// --- Phase enum ---

// Phase is one kind of task in a goal plan.
type Phase string

const (
	PhaseResearch  Phase = "research"
	PhaseAnalyze   Phase = "analyze"
	PhaseDesign    Phase = "design"
	PhaseImplement Phase = "implement"
	PhaseMeasure   Phase = "measure"
	PhaseTest      Phase = "test"
	PhaseDocument  Phase = "document"
	PhaseReview    Phase = "review"
)

// --- Status enums ---

// TaskStatus tracks one task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// GoalStatus tracks the overall lifecycle of a goal.
type GoalStatus string

const (
	StatusActive    GoalStatus = "active"
	StatusCompleted GoalStatus = "completed"
)

// --- Core data structures ---

// Task is one step of a goal plan.
type Task struct {
	ID            string     `json:"id"`
	Phase         Phase      `json:"phase"`
	Title         string     `json:"title"`
	EstimateHours float64    `json:"estimate_hours"`
	DependsOn     []string   `json:"depends_on,omitempty"`
	Status        TaskStatus `json:"status"`
	Output        string     `json:"output,omitempty"`
	StartedAt     string     `json:"started_at,omitempty"`
	CompletedAt   string     `json:"completed_at,omitempty"`
}

// Goal is the root record, persisted as goal.json.
type Goal struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Type        GoalType       `json:"type"`
	Complexity  Complexity     `json:"complexity"`
	Context     map[string]any `json:"context,omitempty"`
	Tasks       []Task         `json:"tasks"`
	CurrentTask string         `json:"current_task"`
	Status      GoalStatus     `json:"status"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// GoalResult is returned by ExecuteGoal.
type GoalResult struct {
	GoalID             string     `json:"goal_id"`
	Type               GoalType   `json:"type"`
	Complexity         Complexity `json:"complexity"`
	Tasks              []Task     `json:"tasks"`
	TotalTasks         int        `json:"total_tasks"`
	TotalEstimateHours float64    `json:"total_estimate_hours"`
	Status             GoalStatus `json:"status"`
	Executed           bool       `json:"executed"`
}

// Progress summarizes how far a goal has come.
type Progress struct {
	GoalID                 string     `json:"goal_id"`
	Description            string     `json:"description"`
	Status                 GoalStatus `json:"status"`
	TotalTasks             int        `json:"total_tasks"`
	CompletedTasks         int        `json:"completed_tasks"`
	PercentComplete        float64    `json:"percent_complete"`
	CurrentTask            string     `json:"current_task,omitempty"`
	RemainingEstimateHours float64    `json:"remaining_estimate_hours"`
}

// --- Slug generation ---

const maxSlugLen = 50

// Slugify converts a goal description into a filesystem-safe slug.
// Example: "Add OAuth login to the API" → "add-oauth-login-to-the-api"
func Slugify(description string) string {
	if strings.TrimSpace(description) == "" {
		return "unnamed-goal"
	}

	s := strings.ToLower(strings.TrimSpace(description))

	var b strings.Builder
	prevHyphen := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		case r == ' ' || r == '_' || r == '-':
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "unnamed-goal"
	}
	if len(slug) <= maxSlugLen {
		return slug
	}

	truncated := slug[:maxSlugLen]
	if lastHyphen := strings.LastIndex(truncated, "-"); lastHyphen > maxSlugLen/2 {
		truncated = truncated[:lastHyphen]
	}
	return strings.TrimRight(truncated, "-")
}
