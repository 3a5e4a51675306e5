package goals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/agi-mcp/internal/coordinator"
)

// TaskRunner executes a single planned task. The coordinator satisfies it.
type TaskRunner interface {
	ExecuteTask(ctx context.Context, description, taskType string) (*coordinator.ExecutionResult, error)
}

// Planner is the goal decomposition subsystem.
type Planner struct {
	store  Store
	runner TaskRunner
}

// NewPlanner creates a planner. runner may be nil, in which case goals are
// only planned, never executed.
func NewPlanner(store Store, runner TaskRunner) *Planner {
	return &Planner{store: store, runner: runner}
}

// ExecuteGoal classifies and decomposes a goal, persists the plan and starts
// its first task.
//
// Recognized context keys:
//   - "type": overrides the inferred goal type
//   - "complexity": overrides the inferred complexity
//   - "language", "framework": appended to task titles
//   - "auto_execute": when true, tasks run through the TaskRunner in order
//     until one fails
func (p *Planner) ExecuteGoal(ctx context.Context, description string, goalCtx map[string]any) (*GoalResult, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.New("goal description is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	goalType := Classify(description)
	if hint, ok := goalCtx["type"].(string); ok {
		t := GoalType(strings.ToLower(hint))
		if err := ValidateType(t); err != nil {
			return nil, err
		}
		goalType = t
	}
	complexity := AssessComplexity(description, goalCtx)

	phases, err := PhaseFlow(goalType, complexity)
	if err != nil {
		return nil, err
	}

	ts := now()
	goal := &Goal{
		ID:          Slugify(description),
		Description: description,
		Type:        goalType,
		Complexity:  complexity,
		Context:     goalCtx,
		Tasks:       buildTasks(description, phases, complexity, goalCtx),
		Status:      StatusActive,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	Start(goal)

	if err := p.store.Create(goal); err != nil {
		return nil, fmt.Errorf("saving goal: %w", err)
	}

	executed := false
	if auto, _ := goalCtx["auto_execute"].(bool); auto && p.runner != nil {
		if err := p.run(ctx, goal); err != nil {
			return nil, err
		}
		executed = true
	}

	res := &GoalResult{
		GoalID:     goal.ID,
		Type:       goal.Type,
		Complexity: goal.Complexity,
		Tasks:      goal.Tasks,
		TotalTasks: len(goal.Tasks),
		Status:     goal.Status,
		Executed:   executed,
	}
	for _, t := range goal.Tasks {
		res.TotalEstimateHours += t.EstimateHours
	}
	return res, nil
}

// run executes tasks in order, persisting after each one. A task whose
// execution is unsuccessful stays in progress and stops the run.
func (p *Planner) run(ctx context.Context, goal *Goal) error {
	for goal.Status == StatusActive {
		idx := CurrentTaskIndex(goal)
		if idx < 0 {
			return nil
		}
		task := goal.Tasks[idx]

		res, err := p.runner.ExecuteTask(ctx, task.Title, string(goal.Type))
		if err != nil {
			return fmt.Errorf("executing task %s of goal %q: %w", task.ID, goal.ID, err)
		}
		if !res.Success {
			goal.Tasks[idx].Output = fmt.Sprintf("%d of %d subtasks failed", res.Failed, len(res.Subtasks))
			return p.store.Save(goal)
		}

		out := fmt.Sprintf("%d subtasks completed (execution %s)", res.Completed, res.ExecutionID)
		if err := CompleteCurrent(goal, out); err != nil {
			return err
		}
		if err := p.store.Save(goal); err != nil {
			return fmt.Errorf("saving goal: %w", err)
		}
	}
	return nil
}

// Progress reports the progress of a goal.
func (p *Planner) Progress(ctx context.Context, goalID string) (*Progress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	goal, err := p.store.Load(goalID)
	if err != nil {
		return nil, err
	}
	return ProgressOf(goal), nil
}

// Goals reports the progress of every stored goal, oldest first.
func (p *Planner) Goals(ctx context.Context) ([]Progress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := p.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]Progress, 0, len(all))
	for i := range all {
		out = append(out, *ProgressOf(&all[i]))
	}
	return out, nil
}

func buildTasks(description string, phases []Phase, c Complexity, goalCtx map[string]any) []Task {
	subject := description
	var tags []string
	for _, k := range []string{"language", "framework"} {
		if v, ok := goalCtx[k].(string); ok && v != "" {
			tags = append(tags, v)
		}
	}
	if len(tags) > 0 {
		subject += " (" + strings.Join(tags, ", ") + ")"
	}

	tasks := make([]Task, len(phases))
	for i, ph := range phases {
		tasks[i] = Task{
			ID:            fmt.Sprintf("t%d", i+1),
			Phase:         ph,
			Title:         phaseVerbs[ph] + ": " + subject,
			EstimateHours: Estimate(ph, c),
			Status:        TaskPending,
		}
		if i > 0 {
			tasks[i].DependsOn = []string{tasks[i-1].ID}
		}
	}
	return tasks
}
