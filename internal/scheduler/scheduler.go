// Package scheduler advances the simulation and saves snapshots on cron
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/sim"
)

// Runner is what the scheduler drives.
type Runner interface {
	Step(ctx context.Context) (sim.Report, error)
	Save(ctx context.Context) (*model.SnapshotInfo, error)
}

// Scheduler manages the turn and snapshot tasks.
type Scheduler struct {
	Cron   *cron.Cron
	Runner Runner
	Ctx    context.Context
}

// NewScheduler creates a new Scheduler. A turn still running when its next
// tick fires is not overlapped; the tick is skipped.
func NewScheduler(ctx context.Context, r Runner) *Scheduler {
	return &Scheduler{
		Cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Runner: r,
		Ctx:    ctx,
	}
}

// RegisterAll registers the turn task and, if snapshotCron is set, the
// snapshot task.
func (s *Scheduler) RegisterAll(turnCron, snapshotCron string) error {
	if _, err := s.Cron.AddFunc(turnCron, s.turnTask); err != nil {
		return fmt.Errorf("register turn task: %w", err)
	}
	if snapshotCron == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(snapshotCron, s.snapshotTask); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	slog.Info("scheduler started", "tasks", len(s.Cron.Entries()))
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// RunTurnNow executes the turn task immediately.
func (s *Scheduler) RunTurnNow() {
	s.turnTask()
}

func (s *Scheduler) turnTask() {
	if s.Ctx.Err() != nil {
		return
	}
	if _, err := s.Runner.Step(s.Ctx); err != nil {
		slog.Error("scheduled turn", "err", err)
	}
}

func (s *Scheduler) snapshotTask() {
	if s.Ctx.Err() != nil {
		return
	}
	if _, err := s.Runner.Save(s.Ctx); err != nil {
		slog.Error("scheduled snapshot", "err", err)
	}
}
