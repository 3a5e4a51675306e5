package goals

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/agi-mcp/internal/coordinator"
)

func fixTime(t *testing.T) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = orig })
}

// --- Slugify ---

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Add OAuth login to the API", "add-oauth-login-to-the-api"},
		{"  Fix: crash on   empty input!! ", "fix-crash-on-empty-input"},
		{"", "unnamed-goal"},
		{"!!!", "unnamed-goal"},
		{"snake_case_goal", "snake-case-goal"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := Slugify(strings.Repeat("word ", 30))
	if len(long) > maxSlugLen {
		t.Errorf("slug length = %d, want <= %d", len(long), maxSlugLen)
	}
	if strings.HasSuffix(long, "-") {
		t.Errorf("slug %q ends with a hyphen", long)
	}
}

// --- Flows & classification ---

func TestFlowRegistry_CoversEveryTypeAndComplexity(t *testing.T) {
	for gt := range validTypes {
		for c := range validComplexities {
			flow, err := PhaseFlow(gt, c)
			require.NoError(t, err, "%s/%s", gt, c)
			assert.NotEmpty(t, flow, "%s/%s", gt, c)
			for _, ph := range flow {
				assert.Contains(t, phaseHours, ph)
				assert.Contains(t, phaseVerbs, ph)
			}
		}
	}
}

func TestPhaseFlow_ReturnsCopy(t *testing.T) {
	flow, err := PhaseFlow(TypeFeature, ComplexitySimple)
	require.NoError(t, err)
	flow[0] = PhaseReview
	again, _ := PhaseFlow(TypeFeature, ComplexitySimple)
	assert.Equal(t, PhaseImplement, again[0])
}

func TestPhaseFlow_Invalid(t *testing.T) {
	_, err := PhaseFlow("chore", ComplexitySimple)
	assert.Error(t, err)
	_, err = PhaseFlow(TypeFix, "huge")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want GoalType
	}{
		{"Fix the crash when saving", TypeFix},
		{"Optimize query latency", TypeOptimization},
		{"Refactor the auth module", TypeRefactor},
		{"Write a README for the CLI", TypeDocumentation},
		{"Investigate flaky CI", TypeResearch},
		{"Add OAuth login", TypeFeature},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.in), tt.in)
	}
}

func TestAssessComplexity(t *testing.T) {
	assert.Equal(t, ComplexitySimple, AssessComplexity("Add a logout button", nil))
	assert.Equal(t, ComplexityModerate, AssessComplexity("Add login, logout and password reset", nil))
	assert.Equal(t, ComplexityComplex, AssessComplexity("Migrate the billing system architecture to events", nil))
	assert.Equal(t, ComplexityComplex, AssessComplexity("Add a button", map[string]any{"complexity": "complex"}))
	assert.Equal(t, ComplexitySimple, AssessComplexity("Add a button", map[string]any{"complexity": "bogus"}))
}

// --- Store ---

func TestFileStore_CreateLoadSave(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(dir)

	g := &Goal{ID: "add-login", Description: "Add login", Status: StatusActive}
	require.NoError(t, fs.Create(g))
	_, err := os.Stat(filepath.Join(dir, GoalsDir, "add-login", GoalFile))
	require.NoError(t, err)

	dup := &Goal{ID: "add-login", Description: "Add login again", Status: StatusActive}
	require.NoError(t, fs.Create(dup))
	assert.Equal(t, "add-login-2", dup.ID)

	loaded, err := fs.Load("add-login")
	require.NoError(t, err)
	assert.Equal(t, "Add login", loaded.Description)

	loaded.Status = StatusCompleted
	require.NoError(t, fs.Save(loaded))
	again, err := fs.Load("add-login")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, again.Status)

	list, err := fs.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestFileStore_NotFound(t *testing.T) {
	fs := NewFileStore(t.TempDir())

	_, err := fs.Load("missing")
	assert.True(t, errors.Is(err, ErrGoalNotFound))

	_, err = fs.Load("../escape")
	assert.True(t, errors.Is(err, ErrGoalNotFound))

	err = fs.Save(&Goal{ID: "missing"})
	assert.True(t, errors.Is(err, ErrGoalNotFound))

	list, err := fs.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

// --- State machine ---

func newGoal(n int) *Goal {
	g := &Goal{ID: "g", Status: StatusActive}
	for i := 0; i < n; i++ {
		g.Tasks = append(g.Tasks, Task{ID: string(rune('a' + i)), Title: "task", EstimateHours: 2, Status: TaskPending})
	}
	return g
}

func TestStateMachine_RunsToCompletion(t *testing.T) {
	fixTime(t)
	g := newGoal(2)

	Start(g)
	assert.Equal(t, "a", g.CurrentTask)
	assert.Equal(t, TaskInProgress, g.Tasks[0].Status)
	assert.Equal(t, "2026-01-15T09:30:00Z", g.Tasks[0].StartedAt)

	Start(g) // no-op once started
	assert.Equal(t, "a", g.CurrentTask)

	require.NoError(t, CompleteCurrent(g, "done a"))
	assert.Equal(t, TaskCompleted, g.Tasks[0].Status)
	assert.Equal(t, "done a", g.Tasks[0].Output)
	assert.Equal(t, "b", g.CurrentTask)

	require.NoError(t, CompleteCurrent(g, "done b"))
	assert.Equal(t, StatusCompleted, g.Status)
	assert.Empty(t, g.CurrentTask)

	assert.Error(t, CompleteCurrent(g, "again"))
}

func TestCompleteCurrent_NotStarted(t *testing.T) {
	assert.Error(t, CompleteCurrent(newGoal(1), ""))
}

func TestProgressOf(t *testing.T) {
	g := newGoal(3)
	Start(g)
	require.NoError(t, CompleteCurrent(g, ""))

	p := ProgressOf(g)
	assert.Equal(t, 3, p.TotalTasks)
	assert.Equal(t, 1, p.CompletedTasks)
	assert.Equal(t, 33.3, p.PercentComplete)
	assert.Equal(t, 4.0, p.RemainingEstimateHours)
	assert.Equal(t, "task", p.CurrentTask)

	assert.Equal(t, 0.0, ProgressOf(&Goal{}).PercentComplete)
}

// --- Planner ---

type fakeRunner struct {
	calls   []string
	failOn  string
	errOn   string
	success bool
}

func (f *fakeRunner) ExecuteTask(_ context.Context, description, _ string) (*coordinator.ExecutionResult, error) {
	f.calls = append(f.calls, description)
	if f.errOn != "" && strings.HasPrefix(description, f.errOn) {
		return nil, errors.New("runner down")
	}
	ok := f.failOn == "" || !strings.HasPrefix(description, f.failOn)
	res := &coordinator.ExecutionResult{ExecutionID: "exec-1", Success: ok, Subtasks: []coordinator.Subtask{{}}}
	if ok {
		res.Completed = 1
	} else {
		res.Failed = 1
	}
	return res, nil
}

func TestExecuteGoal_PlansAndPersists(t *testing.T) {
	fixTime(t)
	p := NewPlanner(NewFileStore(t.TempDir()), nil)

	res, err := p.ExecuteGoal(context.Background(), "Add a logout button", map[string]any{"language": "go"})
	require.NoError(t, err)

	assert.Equal(t, "add-a-logout-button", res.GoalID)
	assert.Equal(t, TypeFeature, res.Type)
	assert.Equal(t, ComplexitySimple, res.Complexity)
	require.Len(t, res.Tasks, 2)
	assert.Equal(t, "Implement: Add a logout button (go)", res.Tasks[0].Title)
	assert.Equal(t, []string{"t1"}, res.Tasks[1].DependsOn)
	assert.Equal(t, 6.0, res.TotalEstimateHours)
	assert.False(t, res.Executed)

	prog, err := p.Progress(context.Background(), res.GoalID)
	require.NoError(t, err)
	assert.Equal(t, 0, prog.CompletedTasks)
	assert.Equal(t, "Implement: Add a logout button (go)", prog.CurrentTask)
}

func TestExecuteGoal_TypeOverride(t *testing.T) {
	p := NewPlanner(NewFileStore(t.TempDir()), nil)

	res, err := p.ExecuteGoal(context.Background(), "Add a logout button", map[string]any{"type": "research"})
	require.NoError(t, err)
	assert.Equal(t, TypeResearch, res.Type)

	_, err = p.ExecuteGoal(context.Background(), "Add a logout button", map[string]any{"type": "chore"})
	assert.Error(t, err)
}

func TestExecuteGoal_EmptyDescription(t *testing.T) {
	p := NewPlanner(NewFileStore(t.TempDir()), nil)
	_, err := p.ExecuteGoal(context.Background(), "  ", nil)
	assert.Error(t, err)
}

func TestExecuteGoal_AutoExecute(t *testing.T) {
	runner := &fakeRunner{}
	p := NewPlanner(NewFileStore(t.TempDir()), runner)

	res, err := p.ExecuteGoal(context.Background(), "Add a logout button", map[string]any{"auto_execute": true})
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Len(t, runner.calls, 2)

	prog, err := p.Progress(context.Background(), res.GoalID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, prog.PercentComplete)
}

func TestExecuteGoal_AutoExecuteStopsOnFailure(t *testing.T) {
	runner := &fakeRunner{failOn: "Test"}
	p := NewPlanner(NewFileStore(t.TempDir()), runner)

	res, err := p.ExecuteGoal(context.Background(), "Add a logout button", map[string]any{"auto_execute": true})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, res.Status)

	prog, err := p.Progress(context.Background(), res.GoalID)
	require.NoError(t, err)
	assert.Equal(t, 1, prog.CompletedTasks)
	assert.Equal(t, 50.0, prog.PercentComplete)
}

func TestExecuteGoal_RunnerError(t *testing.T) {
	p := NewPlanner(NewFileStore(t.TempDir()), &fakeRunner{errOn: "Implement"})
	_, err := p.ExecuteGoal(context.Background(), "Add a logout button", map[string]any{"auto_execute": true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner down")
}

func TestProgress_UnknownGoal(t *testing.T) {
	p := NewPlanner(NewFileStore(t.TempDir()), nil)
	_, err := p.Progress(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrGoalNotFound)
}

func TestGoals_ListsProgress(t *testing.T) {
	p := NewPlanner(NewFileStore(t.TempDir()), &fakeRunner{})
	ctx := context.Background()

	none, err := p.Goals(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = p.ExecuteGoal(ctx, "Add a logout button", map[string]any{"auto_execute": true})
	require.NoError(t, err)
	_, err = p.ExecuteGoal(ctx, "Write the docs", nil)
	require.NoError(t, err)

	all, err := p.Goals(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "add-a-logout-button", all[0].GoalID)
	assert.Equal(t, StatusCompleted, all[0].Status)
	assert.Equal(t, "write-the-docs", all[1].GoalID)
	assert.Equal(t, StatusActive, all[1].Status)
}
