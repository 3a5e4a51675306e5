package goals

import (
	"fmt"
	"time"
)

// --- State machine for goal plans ---
//
// A goal works through its tasks in order. Exactly one task is in progress
// while the goal is active; completing the last task completes the goal.

const timeLayout = "2006-01-02T15:04:05Z07:00"

// timeNow is a package-level variable for testability.
var timeNow = time.Now

func now() string {
	return timeNow().UTC().Format(timeLayout)
}

// CurrentTaskIndex returns the position of the current task, or -1.
func CurrentTaskIndex(goal *Goal) int {
	for i, t := range goal.Tasks {
		if t.ID == goal.CurrentTask {
			return i
		}
	}
	return -1
}

// Start marks the first task in progress. It is a no-op for goals that
// already started.
func Start(goal *Goal) {
	if len(goal.Tasks) == 0 || goal.CurrentTask != "" {
		return
	}
	ts := now()
	goal.Tasks[0].Status = TaskInProgress
	goal.Tasks[0].StartedAt = ts
	goal.CurrentTask = goal.Tasks[0].ID
	goal.UpdatedAt = ts
}

// CompleteCurrent marks the current task completed with its output and
// moves to the next task. Completing the final task completes the goal.
func CompleteCurrent(goal *Goal, output string) error {
	if goal.Status != StatusActive {
		return fmt.Errorf("goal %q is not active (status: %s)", goal.ID, goal.Status)
	}
	idx := CurrentTaskIndex(goal)
	if idx < 0 {
		return fmt.Errorf("goal %q has no task in progress", goal.ID)
	}

	ts := now()
	goal.Tasks[idx].Status = TaskCompleted
	goal.Tasks[idx].CompletedAt = ts
	goal.Tasks[idx].Output = output
	goal.UpdatedAt = ts

	if idx == len(goal.Tasks)-1 {
		goal.CurrentTask = ""
		goal.Status = StatusCompleted
		return nil
	}

	next := idx + 1
	goal.Tasks[next].Status = TaskInProgress
	goal.Tasks[next].StartedAt = ts
	goal.CurrentTask = goal.Tasks[next].ID
	return nil
}

// ProgressOf computes the progress summary of a goal.
func ProgressOf(goal *Goal) *Progress {
	p := &Progress{
		GoalID:      goal.ID,
		Description: goal.Description,
		Status:      goal.Status,
		TotalTasks:  len(goal.Tasks),
	}
	for _, t := range goal.Tasks {
		if t.Status == TaskCompleted {
			p.CompletedTasks++
			continue
		}
		p.RemainingEstimateHours += t.EstimateHours
		if t.ID == goal.CurrentTask {
			p.CurrentTask = t.Title
		}
	}
	if p.TotalTasks > 0 {
		p.PercentComplete = float64(p.CompletedTasks*1000/p.TotalTasks) / 10
	}
	return p
}
