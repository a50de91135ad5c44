// Package scheduler wires up the cron job that periodically triggers a
// recommended pull, driven by the cron fields of the settings row.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"jobby/recommend-service/internal/model"
	"jobby/recommend-service/internal/runner"
)

// SettingsSource supplies the current cron configuration.
type SettingsSource interface {
	Get(ctx context.Context) (*model.Settings, error)
}

// Scheduler wraps robfig/cron and manages the scheduled pull loop. The
// schedule lives in settings, so Restart must be called after a settings
// update for changes to take effect.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	coord    *runner.Coordinator
	settings SettingsSource

	// baseCtx outlives any single request: cron ticks fire long after the
	// settings update that scheduled them.
	baseCtx context.Context
}

// New creates a Scheduler. It does not start anything until Start is called.
func New(coord *runner.Coordinator, settings SettingsSource) *Scheduler {
	return &Scheduler{coord: coord, settings: settings, baseCtx: context.Background()}
}

// Start reads the settings row and starts the cron loop if enabled.
// A disabled or empty schedule is not an error — the scheduler just idles
// until Restart is called after a settings change.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseCtx = ctx
	return s.startLocked(ctx)
}

// Restart stops the current cron loop and starts it again with the current
// settings. Called by the settings handler when cron fields change.
func (s *Scheduler) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return s.startLocked(ctx)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) startLocked(ctx context.Context) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if !settings.CronEnabled || settings.CronSchedule == "" {
		slog.Info("scheduled pulls disabled")
		return nil
	}

	c := cron.New()
	tickCtx := s.baseCtx
	if _, err := c.AddFunc(settings.CronSchedule, func() {
		s.runPull(tickCtx)
	}); err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", settings.CronSchedule, err)
	}

	c.Start()
	s.cron = c
	slog.Info("scheduled pulls enabled", "spec", settings.CronSchedule)
	return nil
}

func (s *Scheduler) stopLocked() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	slog.Info("scheduled pulls stopped")
}

// runPull triggers one pull. A tick that finds nothing to do — no queries,
// or a pull already active — is skipped quietly; the next tick tries again.
func (s *Scheduler) runPull(ctx context.Context) {
	runID, err := s.coord.StartPull(ctx)
	switch {
	case errors.Is(err, runner.ErrNoQueries), errors.Is(err, runner.ErrRunActive):
		slog.Info("scheduled pull skipped", "reason", err)
	case err != nil:
		slog.Error("scheduled pull failed to start", "err", err)
	default:
		slog.Info("scheduled pull started", "runId", runID)
	}
}
