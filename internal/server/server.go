// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates the concrete subsystems and
// injects them into the gateway, prompts and resources. No business logic
// lives here, only wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/HendryAvila/agi-mcp/internal/config"
	"github.com/HendryAvila/agi-mcp/internal/coordinator"
	"github.com/HendryAvila/agi-mcp/internal/events"
	"github.com/HendryAvila/agi-mcp/internal/gateway"
	"github.com/HendryAvila/agi-mcp/internal/goals"
	"github.com/HendryAvila/agi-mcp/internal/learning"
	"github.com/HendryAvila/agi-mcp/internal/maintenance"
	"github.com/HendryAvila/agi-mcp/internal/modification"
	"github.com/HendryAvila/agi-mcp/internal/prompts"
	"github.com/HendryAvila/agi-mcp/internal/resources"
	"github.com/HendryAvila/agi-mcp/internal/skills"
	"github.com/HendryAvila/agi-mcp/internal/store"
	"github.com/HendryAvila/agi-mcp/internal/synthesis"
	"github.com/HendryAvila/agi-mcp/internal/telemetry"
	"github.com/HendryAvila/agi-mcp/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// shutdownTimeout bounds the telemetry flush on cleanup.
const shutdownTimeout = 5 * time.Second

// Components holds everything New builds. Close releases it in reverse
// order of construction.
type Components struct {
	DB          *store.DB
	Learning    *learning.Engine
	Coordinator *coordinator.Coordinator
	Skills      *skills.Evolver
	Goals       *goals.Planner
	Synthesizer *synthesis.Synthesizer
	Modifier    *modification.Machine
	Dispatcher  *gateway.Dispatcher
	Maintenance *maintenance.Scheduler

	telemetry *telemetry.Provider
	events    events.Publisher
	log       *zap.Logger
}

// Build constructs the subsystems and the dispatcher from cfg. The caller
// must Close the result.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Components, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Components{log: log, events: events.NoOpPublisher{}}

	prov, err := telemetry.InitOTel(ctx, cfg.Telemetry, Version)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	c.telemetry = prov

	db, err := store.Open(store.Config{DataDir: cfg.DataDir},
		learning.Migration, skills.Migration, modification.Migration)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}
	c.DB = db
	log.Info("store opened", zap.String("path", db.Path()))

	c.Learning = learning.New(db, learning.Config{})
	log.Info("learning engine initialized", zap.String("data_dir", cfg.DataDir))

	c.Coordinator = coordinator.New(coordinator.Config{
		Agents:      cfg.Roster(),
		MaxParallel: cfg.MaxParallel,
		Recommender: c.Learning,
	})
	log.Info("coordinator initialized", zap.Int("agents", len(cfg.Roster())), zap.Int("max_parallel", cfg.MaxParallel))

	c.Skills = skills.New(db)
	log.Info("skill evolution initialized")

	c.Goals = goals.NewPlanner(goals.NewFileStore(cfg.DataDir), c.Coordinator)
	log.Info("goal engine initialized")

	c.Synthesizer = synthesis.New(cfg.DefaultTargetTokens,
		synthesis.NewFileSource(cfg.WorkspaceDir),
		synthesis.NewCodeSource(cfg.WorkspaceDir),
		synthesis.NewMemorySource(c.Learning),
	)
	log.Info("context synthesizer initialized", zap.String("workspace", cfg.WorkspaceDir))

	c.Modifier = modification.New(db)
	baseline, err := c.Modifier.SetBaseline(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("recording modification baseline: %w", err)
	}
	log.Info("self-modification initialized", zap.Int("baseline_modifications", baseline.Modifications))

	if cfg.Events.NatsURL != "" {
		pub, err := events.Connect(cfg.Events.NatsURL, cfg.Events.Subject, log)
		if err != nil {
			// The event bus is optional; calls are served without it.
			log.Warn("event bus disabled", zap.Error(err))
		} else {
			c.events = pub
			log.Info("event bus connected", zap.String("url", cfg.Events.NatsURL))
		}
	}

	metrics, err := telemetry.NewMetrics(prov.Meter)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	c.Dispatcher, err = gateway.New(tools.Subsystems{
		Learner:     c.Learning,
		Coordinator: c.Coordinator,
		Skills:      c.Skills,
		Goals:       c.Goals,
		Synthesizer: c.Synthesizer,
		Modifier:    c.Modifier,
	}, gateway.Options{
		Logger:  log.Named("gateway"),
		Tracer:  prov.Tracer,
		Metrics: metrics,
		Events:  c.events,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	c.Maintenance, err = maintenance.New(maintenance.Config{
		Schedule:      cfg.MaintenanceSchedule,
		RetentionDays: cfg.OutcomeRetentionDays,
		Logger:        log,
	}, c.Learning)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating maintenance scheduler: %w", err)
	}
	c.Maintenance.Start(ctx)

	return c, nil
}

// Close stops background work and releases every resource. It is safe to
// call on a partially built value and more than once.
func (c *Components) Close() {
	if c.Maintenance != nil {
		c.Maintenance.Stop()
	}
	if c.events != nil {
		if err := c.events.Close(); err != nil {
			c.log.Warn("closing event bus", zap.Error(err))
		}
		c.events = nil
	}
	if c.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := c.telemetry.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			c.log.Warn("flushing telemetry", zap.Error(err))
		}
		cancel()
		c.telemetry = nil
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.log.Warn("closing store", zap.Error(err))
		}
		c.DB = nil
	}
}

// StatusHandler serves the agi://status snapshot of c.
func (c *Components) StatusHandler() *resources.StatusHandler {
	return resources.NewStatusHandler(resources.StatusSources{
		StorePath: c.DB.Path(),
		Skills:    c.Skills,
		Goals:     c.Goals,
		Baseline:  c.Modifier,
	})
}

// New creates and configures the MCP server with all tools, prompts and
// resources registered.
//
// The returned cleanup function must be called on shutdown (typically via
// defer). It is always non-nil.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*server.MCPServer, func(), error) {
	c, err := Build(ctx, cfg, log)
	if err != nil {
		return nil, noop, err
	}

	s := server.NewMCPServer(
		"agi-mcp",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	c.Dispatcher.Register(s)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler()
	s.AddResource(resourceHandler.CatalogResource(), resourceHandler.HandleCatalog)

	statusHandler := c.StatusHandler()
	s.AddResource(statusHandler.StatusResource(), statusHandler.HandleStatus)

	c.log.Info("agi-mcp ready", zap.String("version", Version))
	return s, c.Close, nil
}

func noop() {}

// serverInstructions tells the host how to use the tools.
func serverInstructions() string {
	return `You have access to agi-mcp, a gateway to six cooperating subsystems.
Every tool returns a JSON object whose "status" is success, error, info or failed.

## COMPONENTS

- Learning engine: agi_record_outcome, agi_recommend_agent, agi_detect_patterns,
  agi_get_learning_summary. Record an outcome after every task you run so that
  recommendations improve over time.
- Multi-agent coordinator: agi_execute_task, agi_get_system_status. Splits a task
  into subtasks and runs them across specialized agents.
- Skill evolution: agi_register_skill, agi_start_ab_test, agi_promote_skill.
  Versions skills and compares them before promoting one.
- Goal engine: agi_execute_goal, agi_get_goal_progress. Turns a goal into a
  phased task plan and tracks completion.
- Context synthesis: agi_synthesize_context. Gathers documentation, code and
  past outcomes relevant to a query and compresses them to a token budget.
- Self-modification: agi_propose_modification, agi_apply_modification,
  agi_get_improvement_history. Proposals are checked structurally and against
  forbidden imports before they are recorded. Applying only reports the
  recorded modification; nothing is changed on disk.

## WORKFLOW

1. Call agi_synthesize_context before starting unfamiliar work.
2. Use agi_execute_goal for multi-step objectives and agi_execute_task for
   single tasks; agi_recommend_agent tells you who handles a task type best.
3. After finishing, call agi_record_outcome with the real result.

The agi://catalog resource lists every tool with its input schema.`
}
