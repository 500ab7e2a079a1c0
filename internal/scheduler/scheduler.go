// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"anoa.com/lazylegends/pkg/logger"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a unit of background work.
type Job interface {
	// GetName returns a unique name used for logging.
	GetName() string
	// GetSchedule returns a cron expression such as "@every 30m". Empty means on-demand only.
	GetSchedule() string
	Execute(ctx context.Context) error
}

// Scheduler registers and runs jobs. A run that is still going when its
// next tick fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	jobs   []Job
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Register(job Job) error {
	s.jobs = append(s.jobs, job)

	schedule := job.GetSchedule()
	fields := logrus.Fields{"job": job.GetName()}
	if schedule == "" {
		logger.WithFields(fields).Info("Registered on-demand job")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.execute(s.ctx, job) }); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.GetName(), err)
	}
	fields["schedule"] = schedule
	logger.WithFields(fields).Info("Scheduled job")
	return nil
}

func (s *Scheduler) execute(ctx context.Context, job Job) {
	entry := logger.WithFields(logrus.Fields{"job": job.GetName()})
	entry.Info("Starting scheduled job")
	if err := job.Execute(ctx); err != nil {
		entry.WithError(err).Error("Scheduled job failed")
		return
	}
	entry.Info("Scheduled job completed")
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.WithFields(logrus.Fields{"jobs": len(s.jobs)}).Info("Scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
}

// Jobs lists registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.GetName()
	}
	return names
}
