package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kjstillabower/tahmo-weather-service/internal/observability"
)

// Runner is the unit of work a Scheduler fires. *Job satisfies it.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler fires a Runner on a cron schedule evaluated in UTC. A fire that
// starts more than grace after its scheduled time is skipped.
type Scheduler struct {
	runner   Runner
	schedule cron.Schedule
	grace    time.Duration
	logger   *zap.Logger
	now      func() time.Time

	cron *cron.Cron
	ctx  context.Context

	mu   sync.Mutex
	next time.Time
}

// NewScheduler parses expr as a standard five-field cron expression.
func NewScheduler(runner Runner, expr string, grace time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", expr, err)
	}
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		grace:    grace,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}, nil
}

// Start registers the job and starts the cron loop. ctx is passed to every run
// and should outlive the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.mu.Lock()
	s.next = s.schedule.Next(s.now())
	s.mu.Unlock()

	s.cron.Schedule(s.schedule, cron.FuncJob(s.fire))
	s.cron.Start()
	s.logger.Info("refresh scheduler started", zap.Time("next_run", s.Next()))
}

// Stop halts the cron loop and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("refresh scheduler stop: %w", ctx.Err())
	}
}

// Next returns the next scheduled run time.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// fire runs one scheduled tick. Lateness is measured against the run time
// computed when the previous tick was armed.
func (s *Scheduler) fire() {
	now := s.now()

	s.mu.Lock()
	scheduled := s.next
	s.next = s.schedule.Next(now)
	s.mu.Unlock()

	if late := now.Sub(scheduled); !scheduled.IsZero() && late > s.grace {
		observability.StationRefreshMisfiresTotal.Inc()
		s.logger.Warn("refresh run skipped: missed misfire grace",
			zap.Time("scheduled", scheduled),
			zap.Duration("late", late),
			zap.Duration("grace", s.grace))
		return
	}

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// Errors are logged and counted by the runner.
	_ = s.runner.Run(ctx)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
