package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/finvoice/recurpay/internal/clock"
	mandatedomain "github.com/finvoice/recurpay/internal/mandate/domain"
	obsmetrics "github.com/finvoice/recurpay/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing required dependency")

const (
	JobNotify   = "mandate_notify"
	JobExecute  = "mandate_execute"
	JobRecovery = "mandate_recovery"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	MandateSvc mandatedomain.Service
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     Config `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	mandateSvc mandatedomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.MandateSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		mandateSvc: p.MandateSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) (mandatedomain.BatchResult, error),
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	run := s.newJobRun(name)
	s.logJobStart(run)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	result, err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	schedMetrics.AddBatchProcessed(name, result.Processed)
	schedMetrics.AddBatchOutcome(name, obsmetrics.BatchOutcomeSucceeded, result.Succeeded)
	schedMetrics.AddBatchOutcome(name, obsmetrics.BatchOutcomeFailed, result.Failed)

	run.processedCount = result.Processed
	run.errorCount = result.Errors
	if err != nil && run.errorCount == 0 {
		run.errorCount = 1
	}
	s.logJobFinish(run)
	if err == nil {
		return nil
	}

	// A deadline on a periodic job is a soft failure; the next tick picks up
	// the remaining rows.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.String("run_id", run.runID),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobNotify, s.isJobEnabled(JobNotify), func(ctx context.Context) error {
			return s.runJob(ctx, JobNotify, s.cfg.JobTimeout, s.mandateSvc.RunDueNotifications)
		}},
		{JobExecute, s.isJobEnabled(JobExecute), func(ctx context.Context) error {
			return s.runJob(ctx, JobExecute, s.cfg.JobTimeout, s.mandateSvc.RunDueExecutions)
		}},
		{JobRecovery, s.isJobEnabled(JobRecovery), func(ctx context.Context) error {
			return s.runJob(ctx, JobRecovery, s.cfg.JobTimeout, func(ctx context.Context) (mandatedomain.BatchResult, error) {
				return s.mandateSvc.RecoverStuckActivations(ctx, s.cfg.RecoveryThreshold)
			})
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// If EnabledJobs is empty, all jobs are enabled by default.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
