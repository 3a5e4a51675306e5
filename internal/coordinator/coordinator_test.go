package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDecompose(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single", "Fix the login bug", []string{"Fix the login bug"}},
		{"sentences", "Analyze the logs. Fix the bug.", []string{"Analyze the logs", "Fix the bug"}},
		{"then", "Analyze the logs, then fix the bug and then write tests", []string{"Analyze the logs", "fix the bug", "write tests"}},
		{"and", "write the code and test it", []string{"write the code", "test it"}},
		{"comma and", "profile the service, and document the results", []string{"profile the service", "document the results"}},
		{"android is not and", "ship the android build", []string{"ship the android build"}},
		{"semicolons and newlines", "build api; write docs\nreview", []string{"build api", "write docs", "review"}},
		{"version numbers survive", "Upgrade to 1.2.3 now", []string{"Upgrade to 1.2.3 now"}},
		{"strengthen is not then", "strengthen the checks", []string{"strengthen the checks"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decompose(tt.in))
		})
	}
}

func TestDecompose_CapsSubtasks(t *testing.T) {
	parts := Decompose("a. b. c. d. e. f. g. h. i. j.")
	require.Len(t, parts, maxSubtasks)
	assert.Equal(t, "h; i; j", parts[maxSubtasks-1])
}

func TestExecuteTask_AssignsBySpecialty(t *testing.T) {
	c := New(Config{})

	res, err := c.ExecuteTask(context.Background(), "Analyze the logs. Implement the fix. Test the change. Tidy up", "general")
	require.NoError(t, err)

	require.Len(t, res.Subtasks, 4)
	got := []string{}
	for _, st := range res.Subtasks {
		got = append(got, st.Agent)
		assert.Equal(t, StatusCompleted, st.Status)
		assert.Contains(t, st.Output, st.Description)
	}
	assert.Equal(t, []string{"analyst", "coder", "tester", "general-purpose"}, got)
	assert.True(t, res.Success)
	assert.Equal(t, 4, res.Completed)
	assert.Equal(t, 0, res.Failed)
	assert.NotEmpty(t, res.ExecutionID)
	assert.Equal(t, "general", res.TaskType)
}

func TestExecuteTask_EmptyDescription(t *testing.T) {
	_, err := New(Config{}).ExecuteTask(context.Background(), "   ", "general")
	assert.ErrorIs(t, err, ErrEmptyTask)
}

func TestExecuteTask_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}).ExecuteTask(ctx, "do it", "general")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteTask_FailingSubtaskDoesNotStopSiblings(t *testing.T) {
	exec := ExecutorFunc(func(ctx context.Context, a Agent, st Subtask) (string, error) {
		if strings.Contains(st.Description, "broken") {
			return "", errors.New("tool crashed")
		}
		return "ok", nil
	})
	c := New(Config{Executor: exec})

	res, err := c.ExecuteTask(context.Background(), "write code; run broken step; write docs", "general")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Completed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "tool crashed", res.Subtasks[1].Error)
}

func TestExecuteTask_RespectsMaxParallel(t *testing.T) {
	var running, peak atomic.Int32
	exec := ExecutorFunc(func(ctx context.Context, a Agent, st Subtask) (string, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return "ok", nil
	})
	c := New(Config{Executor: exec, MaxParallel: 2})

	_, err := c.ExecuteTask(context.Background(), "a. b. c. d. e. f", "general")
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

type fakeRecommender struct {
	agent string
	conf  float64
}

func (f fakeRecommender) RecommendAgent(context.Context, string, map[string]any) (string, float64, error) {
	return f.agent, f.conf, nil
}

func TestExecuteTask_ConfidentRecommendationWins(t *testing.T) {
	c := New(Config{Recommender: fakeRecommender{agent: "reviewer", conf: 0.9}})
	res, err := c.ExecuteTask(context.Background(), "implement the parser", "code_generation")
	require.NoError(t, err)
	assert.Equal(t, "reviewer", res.Subtasks[0].Agent)

	c = New(Config{Recommender: fakeRecommender{agent: "reviewer", conf: 0.1}})
	res, err = c.ExecuteTask(context.Background(), "implement the parser", "code_generation")
	require.NoError(t, err)
	assert.Equal(t, "coder", res.Subtasks[0].Agent)

	c = New(Config{Recommender: fakeRecommender{agent: "ghost", conf: 0.9}})
	res, err = c.ExecuteTask(context.Background(), "implement the parser", "code_generation")
	require.NoError(t, err)
	assert.Equal(t, "coder", res.Subtasks[0].Agent)
}

func TestStatus_TracksExecutionsAndUtilization(t *testing.T) {
	c := New(Config{Agents: []Agent{
		{Name: "coder", Specialties: []string{"code"}},
		{Name: "tester", Specialties: []string{"test"}},
	}})

	_, err := c.ExecuteTask(context.Background(), "code a. code b. test c", "general")
	require.NoError(t, err)

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", st.Health)
	assert.Equal(t, 1, st.TotalExecutions)
	assert.Equal(t, 0, st.ActiveSessions)
	require.Len(t, st.Agents, 2)
	assert.Equal(t, 2, st.Agents[0].TasksCompleted)
	assert.Equal(t, 0.67, st.Agents[0].Utilization)
	assert.Equal(t, 0.33, st.Agents[1].Utilization)
	assert.Equal(t, 0, st.Agents[0].Active)
}

func TestAssign_NoMatchWithoutFallbackUsesFirstAgent(t *testing.T) {
	c := New(Config{Agents: []Agent{{Name: "solo", Specialties: []string{"x"}}}})
	assert.Equal(t, "solo", c.assign(context.Background(), "anything", ""))
}
