// Package coordinator executes tasks by splitting them into subtasks,
// assigning each subtask to a specialized agent and running the subtasks
// in parallel with bounded concurrency.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyTask is returned for blank task descriptions.
var ErrEmptyTask = errors.New("task description is empty")

const (
	maxSubtasks = 8
	// minRecommendConfidence is the learned confidence above which the
	// recommender's choice wins over keyword matching.
	minRecommendConfidence = 0.5
	fallbackAgent          = "general-purpose"
)

// Subtask statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Agent is a worker the coordinator can assign subtasks to.
type Agent struct {
	Name        string   `json:"name" yaml:"name"`
	Specialties []string `json:"specialties" yaml:"specialties"`
}

// Subtask is one unit of a decomposed task.
type Subtask struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Agent       string `json:"agent"`
	Status      string `json:"status"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// ExecutionResult aggregates the outcome of one task execution.
type ExecutionResult struct {
	ExecutionID string    `json:"execution_id"`
	Description string    `json:"description"`
	TaskType    string    `json:"task_type"`
	Subtasks    []Subtask `json:"subtasks"`
	Completed   int       `json:"completed"`
	Failed      int       `json:"failed"`
	Success     bool      `json:"success"`
	DurationMs  int64     `json:"duration_ms"`
}

// AgentStatus reports one agent's load.
type AgentStatus struct {
	Name           string   `json:"name"`
	Specialties    []string `json:"specialties"`
	Active         int      `json:"active"`
	TasksCompleted int      `json:"tasks_completed"`
	TasksFailed    int      `json:"tasks_failed"`
	Utilization    float64  `json:"utilization"`
}

// SystemStatus is the coordinator's health report.
type SystemStatus struct {
	Health          string        `json:"health"`
	Agents          []AgentStatus `json:"agents"`
	ActiveSessions  int           `json:"active_sessions"`
	TotalExecutions int           `json:"total_executions"`
	MaxParallel     int           `json:"max_parallel"`
	Uptime          string        `json:"uptime"`
}

// Executor performs one subtask on behalf of an agent.
type Executor interface {
	Execute(ctx context.Context, agent Agent, task Subtask) (string, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, agent Agent, task Subtask) (string, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, agent Agent, task Subtask) (string, error) {
	return f(ctx, agent, task)
}

// Recommender suggests an agent from learned history.
type Recommender interface {
	RecommendAgent(ctx context.Context, taskType string, taskCtx map[string]any) (string, float64, error)
}

// Config holds coordinator configuration.
type Config struct {
	Agents      []Agent
	MaxParallel int
	Executor    Executor
	Recommender Recommender
}

// DefaultAgents is the roster used when none is configured.
func DefaultAgents() []Agent {
	return []Agent{
		{Name: "coder", Specialties: []string{"implement", "write", "code", "build", "fix", "refactor", "create"}},
		{Name: "analyst", Specialties: []string{"analyze", "analyse", "investigate", "research", "measure", "profile"}},
		{Name: "tester", Specialties: []string{"test", "verify", "validate", "check"}},
		{Name: "reviewer", Specialties: []string{"review", "audit", "inspect"}},
		{Name: "documenter", Specialties: []string{"document", "docs", "explain", "describe"}},
		{Name: fallbackAgent, Specialties: []string{}},
	}
}

// PlanningExecutor is the built-in executor: it records the agent's plan
// for the subtask without side effects.
var PlanningExecutor = ExecutorFunc(func(ctx context.Context, agent Agent, task Subtask) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s planned: %s", agent.Name, task.Description), nil
})

// ─── Coordinator ─────────────────────────────────────────────────────────────

// Coordinator is the multi-agent execution subsystem. It is safe for
// concurrent use.
type Coordinator struct {
	agents      []Agent
	byName      map[string]Agent
	maxParallel int
	executor    Executor
	recommender Recommender
	started     time.Time

	mu         sync.Mutex
	active     int
	executions int
	load       map[string]*AgentStatus
}

// New creates a coordinator.
func New(cfg Config) *Coordinator {
	agents := cfg.Agents
	if len(agents) == 0 {
		agents = DefaultAgents()
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	if cfg.Executor == nil {
		cfg.Executor = PlanningExecutor
	}

	c := &Coordinator{
		agents:      agents,
		byName:      make(map[string]Agent, len(agents)),
		maxParallel: cfg.MaxParallel,
		executor:    cfg.Executor,
		recommender: cfg.Recommender,
		started:     timeNow(),
		load:        make(map[string]*AgentStatus, len(agents)),
	}
	for _, a := range agents {
		c.byName[a.Name] = a
		c.load[a.Name] = &AgentStatus{Name: a.Name, Specialties: a.Specialties}
	}
	return c
}

// ExecuteTask decomposes description, runs the subtasks and aggregates the
// results. A failing subtask does not stop its siblings; the execution is
// successful only when every subtask completed.
func (c *Coordinator) ExecuteTask(ctx context.Context, description, taskType string) (*ExecutionResult, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyTask
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := timeNow()
	result := &ExecutionResult{
		ExecutionID: uuid.New().String(),
		Description: description,
		TaskType:    taskType,
	}

	parts := Decompose(description)
	subtasks := make([]Subtask, len(parts))
	for i, p := range parts {
		subtasks[i] = Subtask{
			ID:          fmt.Sprintf("%s-%d", result.ExecutionID[:8], i+1),
			Description: p,
			Agent:       c.assign(ctx, p, taskType),
		}
	}

	c.begin()
	defer c.end()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)
	for i := range subtasks {
		g.Go(func() error {
			c.run(gctx, &subtasks[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, st := range subtasks {
		if st.Status == StatusCompleted {
			result.Completed++
		} else {
			result.Failed++
		}
	}
	result.Subtasks = subtasks
	result.Success = result.Failed == 0
	result.DurationMs = timeNow().Sub(start).Milliseconds()
	return result, nil
}

func (c *Coordinator) run(ctx context.Context, st *Subtask) {
	agent := c.byName[st.Agent]
	if err := ctx.Err(); err != nil {
		st.Status = StatusCancelled
		st.Error = err.Error()
		return
	}

	c.track(st.Agent, 1, "")
	start := timeNow()
	out, err := c.executor.Execute(ctx, agent, *st)
	st.DurationMs = timeNow().Sub(start).Milliseconds()

	if err != nil {
		st.Status = StatusFailed
		st.Error = err.Error()
		c.track(st.Agent, -1, StatusFailed)
		return
	}
	st.Status = StatusCompleted
	st.Output = out
	c.track(st.Agent, -1, StatusCompleted)
}

// assign picks an agent for a subtask: a confident learned recommendation
// first, then specialty keyword matches, then the fallback agent.
func (c *Coordinator) assign(ctx context.Context, subtask, taskType string) string {
	if c.recommender != nil && taskType != "" {
		agent, conf, err := c.recommender.RecommendAgent(ctx, taskType, nil)
		if err == nil && conf >= minRecommendConfidence {
			if _, ok := c.byName[agent]; ok {
				return agent
			}
		}
	}

	words := wordsOf(subtask)
	best, bestHits := "", 0
	for _, a := range c.agents {
		hits := 0
		for _, s := range a.Specialties {
			if slices.ContainsFunc(words, func(w string) bool { return strings.HasPrefix(w, s) }) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = a.Name, hits
		}
	}
	if best != "" {
		return best
	}
	if _, ok := c.byName[fallbackAgent]; ok {
		return fallbackAgent
	}
	return c.agents[0].Name
}

// ─── Status ──────────────────────────────────────────────────────────────────

// Status reports agents, load and health.
func (c *Coordinator) Status(ctx context.Context) (*SystemStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, l := range c.load {
		total += l.TasksCompleted + l.TasksFailed
	}

	status := &SystemStatus{
		Health:          "healthy",
		ActiveSessions:  c.active,
		TotalExecutions: c.executions,
		MaxParallel:     c.maxParallel,
		Uptime:          timeNow().Sub(c.started).Round(time.Second).String(),
	}
	for _, a := range c.agents {
		l := *c.load[a.Name]
		if total > 0 {
			l.Utilization = math.Round(float64(l.TasksCompleted+l.TasksFailed)/float64(total)*100) / 100
		}
		status.Agents = append(status.Agents, l)
	}
	if len(status.Agents) == 0 {
		status.Health = "degraded"
	}
	return status, nil
}

func (c *Coordinator) begin() {
	c.mu.Lock()
	c.active++
	c.executions++
	c.mu.Unlock()
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.active--
	c.mu.Unlock()
}

func (c *Coordinator) track(agent string, delta int, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.load[agent]
	if !ok {
		return
	}
	l.Active += delta
	switch outcome {
	case StatusCompleted:
		l.TasksCompleted++
	case StatusFailed:
		l.TasksFailed++
	}
}

// ─── Decomposition ───────────────────────────────────────────────────────────

var splitPattern = regexp.MustCompile(`(?i)(?:[.;!?]+(?:\s+|$)|\n+|,?\s+(?:and\s+)?then\s+|,?\s+and\s+)`)

// Decompose splits a task description into ordered subtask descriptions.
// Sentences, semicolons, newlines, "then" and "and" are boundaries. A
// description with no boundary yields itself.
func Decompose(description string) []string {
	var parts []string
	for _, p := range splitPattern.Split(description, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return []string{strings.TrimSpace(description)}
	}
	if len(parts) > maxSubtasks {
		tail := strings.Join(parts[maxSubtasks-1:], "; ")
		parts = append(parts[:maxSubtasks-1], tail)
	}
	return parts
}

func wordsOf(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

// timeNow is a package-level variable for testability.
var timeNow = time.Now
