// Package learning records task outcomes and learns which agent performs
// best for each task type.
//
// Outcomes live in the shared SQLite store. Recommendations are a weighted
// score over success rate, quality and speed, discounted by how much history
// an agent has. Pattern detection looks for consistently good or bad
// (task type, agent) pairs, recurring errors and slow agents.
package learning

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/HendryAvila/agi-mcp/internal/store"
)

// Migration creates the outcomes table.
const Migration = `
	CREATE TABLE IF NOT EXISTS outcomes (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id           TEXT    NOT NULL,
		task_type         TEXT    NOT NULL,
		agent             TEXT    NOT NULL,
		success           INTEGER NOT NULL,
		execution_time_ms INTEGER NOT NULL,
		quality_score     REAL,
		error_message     TEXT    NOT NULL DEFAULT '',
		context           TEXT    NOT NULL DEFAULT '{}',
		recorded_at       TEXT    NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_type_agent ON outcomes(task_type, agent);
	CREATE INDEX IF NOT EXISTS idx_outcomes_recorded ON outcomes(recorded_at);
`

// ErrInvalidOutcome is returned when an outcome fails validation.
var ErrInvalidOutcome = errors.New("invalid outcome")

// Pattern thresholds.
const (
	minPatternSamples  = 3
	highSuccessRate    = 0.8
	highFailureRate    = 0.4
	recurringErrorMin  = 2
	slowAgentFactor    = 2.0
	defaultMinSamples  = 5
	matureOutcomeCount = 100
)

// ─── Types ───────────────────────────────────────────────────────────────────

// TaskOutcome is one recorded task execution.
type TaskOutcome struct {
	TaskID          string         `json:"task_id"`
	TaskType        string         `json:"task_type"`
	AgentUsed       string         `json:"agent_used"`
	Success         bool           `json:"success"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	QualityScore    *float64       `json:"quality_score,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Validate checks the fields the store relies on.
func (o TaskOutcome) Validate() error {
	switch {
	case strings.TrimSpace(o.TaskID) == "":
		return fmt.Errorf("%w: task_id is empty", ErrInvalidOutcome)
	case strings.TrimSpace(o.TaskType) == "":
		return fmt.Errorf("%w: task_type is empty", ErrInvalidOutcome)
	case strings.TrimSpace(o.AgentUsed) == "":
		return fmt.Errorf("%w: agent_used is empty", ErrInvalidOutcome)
	case o.ExecutionTimeMs < 0:
		return fmt.Errorf("%w: execution_time_ms must not be negative", ErrInvalidOutcome)
	case o.QualityScore != nil && (*o.QualityScore < 0 || *o.QualityScore > 1):
		return fmt.Errorf("%w: quality_score must be between 0.0 and 1.0", ErrInvalidOutcome)
	}
	return nil
}

// AgentStats aggregates an agent's history, optionally for one task type.
type AgentStats struct {
	Agent          string   `json:"agent"`
	Executions     int      `json:"executions"`
	SuccessRate    float64  `json:"success_rate"`
	AvgQuality     *float64 `json:"avg_quality,omitempty"`
	AvgExecutionMs float64  `json:"avg_execution_ms"`
}

// Pattern is one insight found in recent history.
type Pattern struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	TaskType    string  `json:"task_type,omitempty"`
	Agent       string  `json:"agent,omitempty"`
	Occurrences int     `json:"occurrences"`
	Confidence  float64 `json:"confidence"`
}

// Pattern types.
const (
	PatternHighSuccess    = "high_success"
	PatternHighFailure    = "high_failure"
	PatternRecurringError = "recurring_error"
	PatternSlowAgent      = "slow_agent"
)

// Summary describes the overall state of the learning system.
type Summary struct {
	TotalOutcomes      int          `json:"total_outcomes"`
	OverallSuccessRate float64      `json:"overall_success_rate"`
	TaskTypes          int          `json:"task_types"`
	Agents             int          `json:"agents"`
	LearningMaturity   string       `json:"learning_maturity"`
	AgentPerformance   []AgentStats `json:"agent_performance"`
}

// Config holds engine configuration.
type Config struct {
	// DefaultAgent is recommended when a task type has no history.
	DefaultAgent string
	// MinSamples is the history size at which confidence stops being discounted.
	MinSamples int
}

// Engine is the learning subsystem.
type Engine struct {
	db  *store.DB
	cfg Config
}

// New creates an engine over an open store. The store must have been opened
// with Migration.
func New(db *store.DB, cfg Config) *Engine {
	if cfg.DefaultAgent == "" {
		cfg.DefaultAgent = "general-purpose"
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = defaultMinSamples
	}
	return &Engine{db: db, cfg: cfg}
}

// ─── Recording ───────────────────────────────────────────────────────────────

// RecordOutcome persists an outcome.
func (e *Engine) RecordOutcome(ctx context.Context, o TaskOutcome) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = timeNow()
	}
	ctxJSON := []byte("{}")
	if len(o.Context) > 0 {
		var err error
		if ctxJSON, err = json.Marshal(o.Context); err != nil {
			return fmt.Errorf("learning: encode context: %w", err)
		}
	}

	var quality sql.NullFloat64
	if o.QualityScore != nil {
		quality = sql.NullFloat64{Float64: *o.QualityScore, Valid: true}
	}

	_, err := e.db.ExecContext(ctx,
		`INSERT INTO outcomes (task_id, task_type, agent, success, execution_time_ms, quality_score, error_message, context, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.TaskID, o.TaskType, o.AgentUsed, boolToInt(o.Success), o.ExecutionTimeMs,
		quality, o.ErrorMessage, string(ctxJSON), store.Format(o.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("learning: insert outcome: %w", err)
	}
	return nil
}

// Prune deletes outcomes recorded before cutoff and reports how many went.
func (e *Engine) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := e.db.ExecContext(ctx, `DELETE FROM outcomes WHERE recorded_at < ?`, store.Format(cutoff))
	if err != nil {
		return 0, fmt.Errorf("learning: prune: %w", err)
	}
	return res.RowsAffected()
}

// RecentOutcomes returns up to limit outcomes, newest first.
func (e *Engine) RecentOutcomes(ctx context.Context, limit int) ([]TaskOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := e.db.QueryContext(ctx,
		`SELECT task_id, task_type, agent, success, execution_time_ms, quality_score, error_message, context, recorded_at
		 FROM outcomes ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("learning: recent outcomes: %w", err)
	}
	defer rows.Close()

	var out []TaskOutcome
	for rows.Next() {
		var (
			o        TaskOutcome
			success  int
			quality  sql.NullFloat64
			ctxJSON  string
			recorded string
		)
		if err := rows.Scan(&o.TaskID, &o.TaskType, &o.AgentUsed, &success, &o.ExecutionTimeMs,
			&quality, &o.ErrorMessage, &ctxJSON, &recorded); err != nil {
			return nil, fmt.Errorf("learning: scan outcome: %w", err)
		}
		o.Success = success != 0
		if quality.Valid {
			q := quality.Float64
			o.QualityScore = &q
		}
		if ctxJSON != "" && ctxJSON != "{}" {
			_ = json.Unmarshal([]byte(ctxJSON), &o.Context)
		}
		o.Timestamp, _ = store.ParseTime(recorded)
		out = append(out, o)
	}
	return out, rows.Err()
}

// ─── Recommendation ──────────────────────────────────────────────────────────

// RecommendAgent picks the best agent for taskType and returns it with a
// confidence in [0, 1]. With no history the configured default agent is
// returned with confidence 0.
//
// The context may carry "exclude_agents" (a list of names) to rule agents out.
func (e *Engine) RecommendAgent(ctx context.Context, taskType string, taskCtx map[string]any) (string, float64, error) {
	if strings.TrimSpace(taskType) == "" {
		return "", 0, fmt.Errorf("%w: task_type is empty", ErrInvalidOutcome)
	}

	stats, err := e.agentStats(ctx, "WHERE task_type = ?", taskType)
	if err != nil {
		return "", 0, err
	}
	stats = excludeAgents(stats, taskCtx)
	if len(stats) == 0 {
		return e.cfg.DefaultAgent, 0, nil
	}

	fastest := 0.0
	for _, s := range stats {
		if s.AvgExecutionMs > 0 && (fastest == 0 || s.AvgExecutionMs < fastest) {
			fastest = s.AvgExecutionMs
		}
	}

	best, bestConf := "", -1.0
	for _, s := range stats {
		score := float64(WeightedScore(agentDimensions(s, fastest))) / 100
		conf := round2(score * sampleFactor(s.Executions, e.cfg.MinSamples))
		// stats are sorted by agent name, so ties keep the first name.
		if conf > bestConf {
			best, bestConf = s.Agent, conf
		}
	}
	return best, bestConf, nil
}

func excludeAgents(stats []AgentStats, taskCtx map[string]any) []AgentStats {
	raw, ok := taskCtx["exclude_agents"].([]any)
	if !ok || len(raw) == 0 {
		return stats
	}
	excluded := make(map[string]bool, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			excluded[s] = true
		}
	}
	kept := stats[:0]
	for _, s := range stats {
		if !excluded[s.Agent] {
			kept = append(kept, s)
		}
	}
	return kept
}

// agentStats aggregates per-agent history under an optional WHERE clause.
func (e *Engine) agentStats(ctx context.Context, where string, args ...any) ([]AgentStats, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT agent, COUNT(*), AVG(success), AVG(quality_score), AVG(execution_time_ms)
		 FROM outcomes `+where+`
		 GROUP BY agent ORDER BY agent`, args...)
	if err != nil {
		return nil, fmt.Errorf("learning: agent stats: %w", err)
	}
	defer rows.Close()

	var out []AgentStats
	for rows.Next() {
		var (
			s       AgentStats
			quality sql.NullFloat64
		)
		if err := rows.Scan(&s.Agent, &s.Executions, &s.SuccessRate, &quality, &s.AvgExecutionMs); err != nil {
			return nil, fmt.Errorf("learning: scan agent stats: %w", err)
		}
		s.SuccessRate = round2(s.SuccessRate)
		s.AvgExecutionMs = round2(s.AvgExecutionMs)
		if quality.Valid {
			q := round2(quality.Float64)
			s.AvgQuality = &q
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ─── Patterns ────────────────────────────────────────────────────────────────

// DetectPatterns analyzes outcomes recorded in the last lookbackDays days.
func (e *Engine) DetectPatterns(ctx context.Context, lookbackDays int) ([]Pattern, error) {
	if lookbackDays <= 0 {
		return nil, fmt.Errorf("lookback_days must be positive, got %d", lookbackDays)
	}
	since := store.Format(timeNow().AddDate(0, 0, -lookbackDays))

	patterns := []Pattern{}

	pairs, err := e.db.QueryContext(ctx,
		`SELECT task_type, agent, COUNT(*), AVG(success)
		 FROM outcomes WHERE recorded_at >= ?
		 GROUP BY task_type, agent HAVING COUNT(*) >= ?
		 ORDER BY task_type, agent`, since, minPatternSamples)
	if err != nil {
		return nil, fmt.Errorf("learning: detect pair patterns: %w", err)
	}
	for pairs.Next() {
		var (
			taskType, agent string
			n               int
			rate            float64
		)
		if err := pairs.Scan(&taskType, &agent, &n, &rate); err != nil {
			pairs.Close()
			return nil, fmt.Errorf("learning: scan pair pattern: %w", err)
		}
		switch {
		case rate >= highSuccessRate:
			patterns = append(patterns, Pattern{
				Type:        PatternHighSuccess,
				Description: fmt.Sprintf("%s succeeds on %.0f%% of %s tasks", agent, rate*100, taskType),
				TaskType:    taskType, Agent: agent, Occurrences: n,
				Confidence: round2(rate * sampleFactor(n, e.cfg.MinSamples)),
			})
		case rate <= highFailureRate:
			patterns = append(patterns, Pattern{
				Type:        PatternHighFailure,
				Description: fmt.Sprintf("%s fails on %.0f%% of %s tasks", agent, (1-rate)*100, taskType),
				TaskType:    taskType, Agent: agent, Occurrences: n,
				Confidence: round2((1 - rate) * sampleFactor(n, e.cfg.MinSamples)),
			})
		}
	}
	iterErr := pairs.Err()
	_ = pairs.Close()
	if iterErr != nil {
		return nil, fmt.Errorf("learning: detect patterns: %w", iterErr)
	}

	errs, err := e.db.QueryContext(ctx,
		`SELECT task_type, error_message, COUNT(*)
		 FROM outcomes WHERE recorded_at >= ? AND success = 0 AND error_message != ''
		 GROUP BY task_type, error_message HAVING COUNT(*) >= ?
		 ORDER BY COUNT(*) DESC, task_type`, since, recurringErrorMin)
	if err != nil {
		return nil, fmt.Errorf("learning: detect recurring errors: %w", err)
	}
	for errs.Next() {
		var (
			taskType, msg string
			n             int
		)
		if err := errs.Scan(&taskType, &msg, &n); err != nil {
			errs.Close()
			return nil, fmt.Errorf("learning: scan recurring error: %w", err)
		}
		patterns = append(patterns, Pattern{
			Type:        PatternRecurringError,
			Description: fmt.Sprintf("%q occurred %d times in %s tasks", msg, n, taskType),
			TaskType:    taskType, Occurrences: n,
			Confidence: round2(sampleFactor(n, e.cfg.MinSamples)),
		})
	}
	iterErr = errs.Err()
	_ = errs.Close()
	if iterErr != nil {
		return nil, fmt.Errorf("learning: detect patterns: %w", iterErr)
	}

	slow, err := e.slowAgents(ctx, since)
	if err != nil {
		return nil, err
	}
	return append(patterns, slow...), nil
}

func (e *Engine) slowAgents(ctx context.Context, since string) ([]Pattern, error) {
	stats, err := e.agentStats(ctx, "WHERE recorded_at >= ?", since)
	if err != nil {
		return nil, err
	}
	if len(stats) < 2 {
		return nil, nil
	}

	var total float64
	var n int
	for _, s := range stats {
		total += s.AvgExecutionMs * float64(s.Executions)
		n += s.Executions
	}
	overall := total / float64(n)

	var out []Pattern
	for _, s := range stats {
		if s.Executions < minPatternSamples || s.AvgExecutionMs <= overall*slowAgentFactor {
			continue
		}
		out = append(out, Pattern{
			Type:        PatternSlowAgent,
			Description: fmt.Sprintf("%s averages %.0fms, %.1fx the overall average", s.Agent, s.AvgExecutionMs, s.AvgExecutionMs/overall),
			Agent:       s.Agent, Occurrences: s.Executions,
			Confidence: round2(sampleFactor(s.Executions, e.cfg.MinSamples)),
		})
	}
	return out, nil
}

// ─── Summary ─────────────────────────────────────────────────────────────────

// Summary returns overall statistics.
func (e *Engine) Summary(ctx context.Context) (*Summary, error) {
	var (
		s    Summary
		rate sql.NullFloat64
	)
	err := e.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(success), COUNT(DISTINCT task_type), COUNT(DISTINCT agent) FROM outcomes`,
	).Scan(&s.TotalOutcomes, &rate, &s.TaskTypes, &s.Agents)
	if err != nil {
		return nil, fmt.Errorf("learning: summary: %w", err)
	}
	s.OverallSuccessRate = round2(rate.Float64)
	s.LearningMaturity = maturity(s.TotalOutcomes, e.cfg.MinSamples)

	perf, err := e.agentStats(ctx, "")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(perf, func(i, j int) bool { return perf[i].Executions > perf[j].Executions })
	if perf == nil {
		perf = []AgentStats{}
	}
	s.AgentPerformance = perf
	return &s, nil
}

func maturity(total, minSamples int) string {
	switch {
	case total == 0:
		return "untrained"
	case total < minSamples*2:
		return "bootstrapping"
	case total < matureOutcomeCount:
		return "learning"
	default:
		return "mature"
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeNow is a package-level variable for testability.
var timeNow = time.Now
