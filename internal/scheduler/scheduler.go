package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/elonfeng/feedrank/internal/config"
	"github.com/elonfeng/feedrank/internal/feed"
	"github.com/elonfeng/feedrank/pkg/trend"
)

// Job is one periodic task.
type Job struct {
	Name string
	Spec string // standard cron expression or descriptor such as @hourly
	Run  func(ctx context.Context) error
}

// Scheduler runs market refresh, trend detection and reputation
// reconciliation on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	jobs []Job
	log  zerolog.Logger
}

// New creates a scheduler. Jobs with an empty spec are skipped.
func New(jobs []Job, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log: log.With().Str("component", "scheduler").Logger(),
	}
	for _, j := range jobs {
		if j.Spec == "" {
			continue
		}
		if j.Run == nil {
			return nil, fmt.Errorf("job %s has no run function", j.Name)
		}
		if _, err := cron.ParseStandard(j.Spec); err != nil {
			return nil, fmt.Errorf("parse %s schedule %q: %w", j.Name, j.Spec, err)
		}
		s.jobs = append(s.jobs, j)
	}
	return s, nil
}

// Jobs returns the scheduled jobs.
func (s *Scheduler) Jobs() []Job {
	return s.jobs
}

// Run executes every job once, then on its schedule. Blocks until ctx is
// cancelled and in-flight jobs have finished.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, j := range s.jobs {
		s.runJob(ctx, j)
	}

	for _, j := range s.jobs {
		if _, err := s.cron.AddFunc(j.Spec, func() { s.runJob(ctx, j) }); err != nil {
			return fmt.Errorf("schedule %s: %w", j.Name, err)
		}
		s.log.Info().Str("job", j.Name).Str("spec", j.Spec).Msg("scheduled")
	}

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) runJob(ctx context.Context, j Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := j.Run(ctx); err != nil {
		s.log.Error().Err(err).Str("job", j.Name).Msg("job failed")
		return
	}
	s.log.Info().Str("job", j.Name).Dur("took", time.Since(start)).Msg("job done")
}

// Tasks is the work the scheduler drives.
type Tasks interface {
	RefreshMarket(ctx context.Context) ([]trend.MarketTrend, error)
	DetectTrends(ctx context.Context) (*feed.DetectResult, error)
	Reconcile(ctx context.Context) (*feed.ReconcileResult, error)
}

// ServiceJobs builds the standard job set. withMarket false drops the market
// refresh job.
func ServiceJobs(t Tasks, cfg config.ScheduleConfig, withMarket bool) []Job {
	var jobs []Job
	if withMarket {
		jobs = append(jobs, Job{
			Name: "market_refresh",
			Spec: cfg.MarketRefresh,
			Run: func(ctx context.Context) error {
				_, err := t.RefreshMarket(ctx)
				return err
			},
		})
	}
	return append(jobs,
		Job{
			Name: "trend_detect",
			Spec: cfg.TrendDetect,
			Run: func(ctx context.Context) error {
				_, err := t.DetectTrends(ctx)
				return err
			},
		},
		Job{
			Name: "reputation_reconcile",
			Spec: cfg.Reconcile,
			Run: func(ctx context.Context) error {
				_, err := t.Reconcile(ctx)
				return err
			},
		},
	)
}
