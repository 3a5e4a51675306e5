package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/agi-mcp/internal/catalog"
	"github.com/HendryAvila/agi-mcp/internal/coordinator"
	"github.com/HendryAvila/agi-mcp/internal/envelope"
	"github.com/HendryAvila/agi-mcp/internal/goals"
	"github.com/HendryAvila/agi-mcp/internal/learning"
	"github.com/HendryAvila/agi-mcp/internal/modification"
	"github.com/HendryAvila/agi-mcp/internal/skills"
	"github.com/HendryAvila/agi-mcp/internal/synthesis"
)

// --- Fakes ---

type fakeLearner struct {
	recorded learning.TaskOutcome
	patterns []learning.Pattern
	gotDays  int
	err      error
}

func (f *fakeLearner) RecordOutcome(_ context.Context, o learning.TaskOutcome) error {
	f.recorded = o
	return f.err
}

func (f *fakeLearner) RecommendAgent(_ context.Context, taskType string, _ map[string]any) (string, float64, error) {
	return "coder", 0.85, f.err
}

func (f *fakeLearner) DetectPatterns(_ context.Context, days int) ([]learning.Pattern, error) {
	f.gotDays = days
	return f.patterns, f.err
}

func (f *fakeLearner) Summary(_ context.Context) (*learning.Summary, error) {
	return &learning.Summary{TotalOutcomes: 3}, f.err
}

type fakeSkills struct {
	promoted bool
	err      error
}

func (f *fakeSkills) RegisterSkill(_ context.Context, name, _, _, version string) (*skills.SkillVersion, error) {
	if version == "" {
		version = "1.0.0"
	}
	return &skills.SkillVersion{
		SkillName: name,
		Version:   version,
		CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 123, time.UTC),
	}, f.err
}

func (f *fakeSkills) StartABTest(_ context.Context, _, _, _ string, _ float64) (string, error) {
	return "test-1", f.err
}

func (f *fakeSkills) PromoteVersion(_ context.Context, _, _ string) (bool, error) {
	return f.promoted, f.err
}

type fakeSynth struct {
	chunks int
	gotTo  int
	gotSrc []string
}

func (f *fakeSynth) Synthesize(_ context.Context, _ string, sources []string, target int) (*synthesis.Context, error) {
	f.gotSrc, f.gotTo = sources, target
	c := &synthesis.Context{TotalTokens: 120, CompressionRatio: 0.4}
	for i := 0; i < f.chunks; i++ {
		c.Chunks = append(c.Chunks, synthesis.Chunk{
			Source:    synthesis.SourceFile,
			Relevance: float64(f.chunks-i) / 10,
		})
	}
	return c, nil
}

type fakeModifier struct {
	history  []modification.Record
	gotLimit int
	found    []string
}

func (f *fakeModifier) ProposeModification(_ context.Context, _, _ string, t modification.Type, d string) (*modification.Modification, error) {
	return &modification.Modification{ID: "mod-1", Type: t, Description: d, ProofStatus: modification.ProofVerified}, nil
}

func (f *fakeModifier) History(_ context.Context, limit int) ([]modification.Record, error) {
	f.gotLimit = limit
	return f.history, nil
}

func (f *fakeModifier) Find(_ context.Context, id string) (*modification.Record, error) {
	f.found = append(f.found, id)
	for i := range f.history {
		if f.history[i].ModificationID == id {
			return &f.history[i], nil
		}
	}
	return nil, nil
}

type fakeCoordinator struct{ err error }

func (f fakeCoordinator) ExecuteTask(_ context.Context, d, tt string) (*coordinator.ExecutionResult, error) {
	return &coordinator.ExecutionResult{Description: d, TaskType: tt, Success: true}, f.err
}

func (f fakeCoordinator) Status(_ context.Context) (*coordinator.SystemStatus, error) {
	return &coordinator.SystemStatus{Health: "healthy"}, f.err
}

type fakeGoals struct{}

func (fakeGoals) ExecuteGoal(_ context.Context, d string, _ map[string]any) (*goals.GoalResult, error) {
	return &goals.GoalResult{GoalID: goals.Slugify(d)}, nil
}

func (fakeGoals) Progress(_ context.Context, id string) (*goals.Progress, error) {
	if id != "known" {
		return nil, fmt.Errorf("%w: %s", goals.ErrGoalNotFound, id)
	}
	return &goals.Progress{GoalID: id}, nil
}

func decode(t *testing.T, env envelope.Envelope) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(env.Text()), &m))
	return m
}

// --- Table ---

func TestHandlers_EverySlotFilled(t *testing.T) {
	h := Handlers(Subsystems{})
	for _, op := range catalog.Operations() {
		assert.NotNil(t, h[op], "no handler for %s", op)
	}
}

// --- Learning ---

func TestRecordOutcome(t *testing.T) {
	orig := timeNow
	timeNow = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = orig })

	l := &fakeLearner{}
	env, err := recordOutcome(l)(context.Background(), Args{
		"task_id": "t-9", "task_type": "bugfix", "agent_used": "coder",
		"success": true, "execution_time_ms": float64(1500), "quality_score": 0.9,
	})
	require.NoError(t, err)

	got := decode(t, env)
	assert.Equal(t, "success", got["status"])
	assert.Equal(t, "Recorded outcome for task t-9", got["message"])
	want := map[string]any{"task_type": "bugfix", "agent": "coder", "success": true, "execution_time_ms": float64(1500)}
	if diff := cmp.Diff(want, got["outcome"]); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}

	require.NotNil(t, l.recorded.QualityScore)
	assert.Equal(t, 0.9, *l.recorded.QualityScore)
	assert.Equal(t, int64(1500), l.recorded.ExecutionTimeMs)
	assert.Equal(t, "2026-03-01T10:00:00Z", l.recorded.Timestamp.Format(time.RFC3339))
}

func TestRecordOutcome_NoQualityScore(t *testing.T) {
	l := &fakeLearner{}
	_, err := recordOutcome(l)(context.Background(), Args{"task_id": "t", "execution_time_ms": 5})
	require.NoError(t, err)
	assert.Nil(t, l.recorded.QualityScore)
}

func TestRecommendAgent(t *testing.T) {
	env, err := recommendAgent(&fakeLearner{})(context.Background(), Args{"task_type": "analysis"})
	require.NoError(t, err)
	got := decode(t, env)
	assert.Equal(t, "coder", got["recommended_agent"])
	assert.Equal(t, 0.85, got["confidence"])
	assert.Equal(t, "analysis", got["task_type"])
}

func TestDetectPatterns(t *testing.T) {
	l := &fakeLearner{}
	env, err := detectPatterns(l)(context.Background(), Args{"lookback_days": 7})
	require.NoError(t, err)
	got := decode(t, env)
	assert.Equal(t, float64(0), got["patterns_detected"])
	assert.Equal(t, []any{}, got["patterns"])
	assert.Equal(t, 7, l.gotDays)

	l.patterns = []learning.Pattern{{Type: learning.PatternHighSuccess}, {Type: learning.PatternSlowAgent}}
	env, err = detectPatterns(l)(context.Background(), Args{"lookback_days": float64(30)})
	require.NoError(t, err)
	got = decode(t, env)
	assert.Equal(t, float64(2), got["patterns_detected"])
	assert.Equal(t, float64(30), got["lookback_days"])
}

func TestLearnerErrorsPropagate(t *testing.T) {
	l := &fakeLearner{err: errors.New("database is locked")}
	_, err := learningSummary(l)(context.Background(), Args{})
	assert.EqualError(t, err, "database is locked")
}

// --- Coordination ---

func TestExecuteTaskAndStatus(t *testing.T) {
	env, err := executeTask(fakeCoordinator{})(context.Background(), Args{"description": "write tests", "task_type": "general"})
	require.NoError(t, err)
	result := decode(t, env)["result"].(map[string]any)
	assert.Equal(t, "write tests", result["description"])
	assert.Equal(t, "general", result["task_type"])

	env, err = systemStatus(fakeCoordinator{})(context.Background(), Args{})
	require.NoError(t, err)
	assert.Contains(t, decode(t, env), "system_status")

	_, err = systemStatus(fakeCoordinator{err: errors.New("boom")})(context.Background(), Args{})
	assert.Error(t, err)
}

// --- Skills ---

func TestRegisterSkill(t *testing.T) {
	env, err := registerSkill(&fakeSkills{})(context.Background(), Args{"skill_name": "summarize", "code": "x"})
	require.NoError(t, err)
	want := map[string]any{"name": "summarize", "version": "1.0.0", "created_at": "2026-03-01T08:00:00Z"}
	if diff := cmp.Diff(want, decode(t, env)["skill"]); diff != "" {
		t.Errorf("skill mismatch (-want +got):\n%s", diff)
	}
}

func TestStartABTest(t *testing.T) {
	env, err := startABTest(&fakeSkills{})(context.Background(), Args{
		"skill_name": "s", "version_a": "1.0.0", "version_b": "1.0.1", "split_ratio": 0.5,
	})
	require.NoError(t, err)
	got := decode(t, env)
	assert.Equal(t, "test-1", got["test_id"])
	assert.Equal(t, 0.5, got["split_ratio"])
	assert.Equal(t, "1.0.1", got["version_b"])
}

func TestPromoteSkill(t *testing.T) {
	env, err := promoteSkill(&fakeSkills{promoted: true})(context.Background(), Args{"skill_name": "s", "version": "1.0.1"})
	require.NoError(t, err)
	assert.Equal(t, envelope.StatusSuccess, env.Status)

	env, err = promoteSkill(&fakeSkills{})(context.Background(), Args{"skill_name": "s", "version": "9.9.9"})
	require.NoError(t, err)
	got := decode(t, env)
	assert.Equal(t, map[string]any{"status": "failed", "skill_name": "s", "promoted_version": "9.9.9"}, got)

	_, err = promoteSkill(&fakeSkills{err: skills.ErrSkillNotFound})(context.Background(), Args{"skill_name": "x", "version": "1"})
	assert.ErrorIs(t, err, skills.ErrSkillNotFound)
}

// --- Goals ---

func TestGoalHandlers(t *testing.T) {
	env, err := executeGoal(fakeGoals{})(context.Background(), Args{"goal_description": "Add login"})
	require.NoError(t, err)
	result := decode(t, env)["result"].(map[string]any)
	assert.Equal(t, "add-login", result["goal_id"])

	env, err = goalProgress(fakeGoals{})(context.Background(), Args{"goal_id": "known"})
	require.NoError(t, err)
	assert.Contains(t, decode(t, env), "progress")

	_, err = goalProgress(fakeGoals{})(context.Background(), Args{"goal_id": "other"})
	assert.ErrorIs(t, err, goals.ErrGoalNotFound)
}

// --- Synthesis ---

func TestSynthesizeContext_TruncatesSourceList(t *testing.T) {
	s := &fakeSynth{chunks: 10}
	env, err := synthesizeContext(s)(context.Background(), Args{
		"query": "retry", "source_types": []any{"file", "memory"},
	})
	require.NoError(t, err)

	c := decode(t, env)["context"].(map[string]any)
	assert.Equal(t, float64(10), c["chunks"])
	assert.Equal(t, float64(120), c["total_tokens"])
	assert.Equal(t, 0.4, c["compression_ratio"])

	sources := c["sources"].([]any)
	require.Len(t, sources, 5)
	for i, src := range sources {
		m := src.(map[string]any)
		assert.Equal(t, "file", m["type"])
		assert.Equal(t, float64(10-i)/10, m["relevance"], "source %d out of order", i)
	}

	assert.Equal(t, []string{"file", "memory"}, s.gotSrc)
	assert.Equal(t, 0, s.gotTo)
}

func TestSynthesizeContext_FewChunks(t *testing.T) {
	env, err := synthesizeContext(&fakeSynth{chunks: 2})(context.Background(), Args{"query": "q", "target_tokens": 500})
	require.NoError(t, err)
	c := decode(t, env)["context"].(map[string]any)
	assert.Len(t, c["sources"], 2)
}

// --- Modification ---

func TestProposeModification(t *testing.T) {
	env, err := proposeModification(&fakeModifier{})(context.Background(), Args{
		"code_before": "a", "code_after": "b", "modification_type": "optimization", "description": "faster",
	})
	require.NoError(t, err)
	got := decode(t, env)
	assert.Equal(t, "mod-1", got["modification_id"])
	assert.Equal(t, "optimization", got["type"])
	assert.Equal(t, "verified", got["proof_status"])

	_, err = proposeModification(&fakeModifier{})(context.Background(), Args{"modification_type": "rewrite"})
	assert.ErrorIs(t, err, modification.ErrUnknownType)
}

func TestApplyModification(t *testing.T) {
	m := &fakeModifier{history: []modification.Record{{ModificationID: "mod-1", Status: modification.StatusProposed}}}

	env, err := applyModification(m)(context.Background(), Args{"modification_id": "mod-404"})
	require.NoError(t, err)
	assert.True(t, env.IsError())
	assert.Equal(t, "Modification mod-404 not found", env.Message())

	env, err = applyModification(m)(context.Background(), Args{"modification_id": "mod-1"})
	require.NoError(t, err)
	got := decode(t, env)
	assert.Equal(t, "info", got["status"])
	assert.Equal(t, "Modification application requires full object reconstruction", got["message"])
	assert.Equal(t, "mod-1", got["modification_id"])
	assert.Equal(t, "mod-1", got["current_status"].(map[string]any)["modification_id"])
	assert.Equal(t, []string{"mod-404", "mod-1"}, m.found)
	assert.Zero(t, m.gotLimit, "apply must not page through history")
}

func TestImprovementHistory(t *testing.T) {
	m := &fakeModifier{}
	env, err := improvementHistory(m)(context.Background(), Args{"limit": 10})
	require.NoError(t, err)
	assert.Equal(t, []any{}, decode(t, env)["history"])
	assert.Equal(t, 10, m.gotLimit)
}

func TestImprovementHistory_RejectsNonPositiveLimit(t *testing.T) {
	for _, limit := range []int{0, -5} {
		m := &fakeModifier{}
		_, err := improvementHistory(m)(context.Background(), Args{"limit": limit})
		assert.ErrorIs(t, err, modification.ErrInvalidLimit, "limit %d", limit)
		assert.Zero(t, m.gotLimit, "History must not be called")
	}
}
