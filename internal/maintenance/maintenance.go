// Package maintenance runs periodic housekeeping on the learning history.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pruner deletes outcomes recorded before cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config configures the scheduler. An empty Schedule or a zero
// RetentionDays disables maintenance.
type Config struct {
	Schedule      string
	RetentionDays int
	Logger        *zap.Logger
}

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Scheduler prunes old outcomes on a cron schedule.
type Scheduler struct {
	pruner    Pruner
	retention time.Duration
	log       *zap.Logger
	schedule  cron.Schedule
	cron      *cron.Cron

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a scheduler. The schedule uses standard five-field cron
// syntax or a descriptor such as "@daily".
func New(cfg Config, pruner Pruner) (*Scheduler, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		pruner:    pruner,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		log:       log.Named("maintenance"),
	}
	if !s.enabled(cfg) {
		return s, nil
	}

	sched, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parsing maintenance schedule %q: %w", cfg.Schedule, err)
	}
	s.schedule = sched
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return s, nil
}

func (s *Scheduler) enabled(cfg Config) bool {
	return cfg.Schedule != "" && cfg.RetentionDays > 0 && s.pruner != nil
}

// Enabled reports whether Start schedules anything.
func (s *Scheduler) Enabled() bool { return s.cron != nil }

// Start schedules the prune job. Jobs run with a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cron == nil {
		s.log.Debug("maintenance disabled")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		if _, err := s.RunOnce(jobCtx); err != nil {
			s.log.Error("pruning outcomes failed", zap.Error(err))
		}
	}))
	s.cron.Start()
	s.log.Info("maintenance scheduled", zap.Time("next_run", s.NextRun(timeNow())))
}

// Stop cancels running jobs and waits for them to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-s.cron.Stop().Done()
}

// NextRun returns the next scheduled run after t, or the zero time when
// maintenance is disabled.
func (s *Scheduler) NextRun(t time.Time) time.Time {
	if s.schedule == nil {
		return time.Time{}
	}
	return s.schedule.Next(t)
}

// RunOnce prunes outcomes older than the retention period.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	if s.retention <= 0 || s.pruner == nil {
		return 0, nil
	}
	cutoff := timeNow().Add(-s.retention)
	n, err := s.pruner.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning outcomes before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	s.log.Info("pruned outcomes", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}
