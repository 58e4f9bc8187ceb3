package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is a maintenance task run on a cron spec, such as pruning idle
// chat sessions or expired embedding cache rows.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

type CronScheduler struct {
	cron    *cron.Cron
	runners []*jobRunner
	ctx     context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	runner := &jobRunner{job: job, spec: spec, sched: c}
	if _, err := c.cron.AddFunc(spec, runner.fire); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name(), spec, err)
	}
	c.runners = append(c.runners, runner)
	logutil.GetLogger(context.Background()).Info("job scheduled",
		zap.String("job", job.Name()), zap.String("spec", spec))
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	done := c.cron.Stop()
	<-done.Done()
}

// jobRunner guards a single job: overlapping ticks are skipped and a
// panicking job is contained instead of taking the process down.
type jobRunner struct {
	job     Job
	spec    string
	sched   *CronScheduler
	running atomic.Bool
}

func (r *jobRunner) fire() {
	ctx := r.sched.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("job", r.job.Name()),
		zap.String("spec", r.spec),
	)
	if !r.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: previous run still in progress")
		return
	}
	defer r.running.Store(false)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("job panicked", zap.Any("panic", rec))
		}
	}()

	start := time.Now()
	logger.Info("job started")
	if err := r.job.Run(ctx); err != nil {
		logger.Error("job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	logger.Info("job finished", zap.Duration("duration", time.Since(start)))
}
