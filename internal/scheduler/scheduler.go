package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one sync pass.
type Job func(ctx context.Context) error

// Scheduler runs a job on a cron spec. Runs never overlap: a tick that fires
// while the previous run is still going is skipped.
type Scheduler struct {
	Cron   *cron.Cron
	Logger *zap.Logger
	Ctx    context.Context

	mu  sync.Mutex
	job Job
}

// NewScheduler creates a new Scheduler. Cron specs include a seconds field.
func NewScheduler(ctx context.Context, logger *zap.Logger) *Scheduler {
	cronLogger := cron.VerbosePrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		Logger: logger,
		Ctx:    ctx,
	}
}

// Register schedules job at spec.
func (s *Scheduler) Register(spec string, job Job) error {
	s.job = job
	if _, err := s.Cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("register sync task %q: %w", spec, err)
	}
	s.Logger.Info("sync task registered", zap.String("cron", spec))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("scheduler stopped")
}

// RunNow executes the registered job immediately (for RUN_ON_START). It
// shares the overlap guard with scheduled runs.
func (s *Scheduler) RunNow() {
	s.run()
}

func (s *Scheduler) run() {
	if !s.mu.TryLock() {
		s.Logger.Warn("sync already running, skipping")
		return
	}
	defer s.mu.Unlock()

	if s.job == nil {
		return
	}
	s.Logger.Info("running sync task")
	if err := s.job(s.Ctx); err != nil {
		s.Logger.Error("sync task", zap.Error(err))
	}
}
