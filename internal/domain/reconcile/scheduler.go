package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultInterval is the dashboard refresh period.
const DefaultInterval = 5 * time.Second

// Runner is one reconciliation pass.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Scheduler runs passes on a fixed interval. A tick that fires while the
// previous pass is still running is skipped.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	logger   zerolog.Logger
	onResult func(Result, error)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler registers runner at the given interval. onResult, if not
// nil, receives every pass outcome.
func NewScheduler(runner Runner, interval time.Duration, logger zerolog.Logger, onResult func(Result, error)) (*Scheduler, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger = logger.With().Str("component", "reconcile_scheduler").Logger()
	cl := cronLogger{logger: logger}

	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner:   runner,
		logger:   logger,
		onResult: onResult,
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.tick); err != nil {
		return nil, fmt.Errorf("schedule reconciliation: %w", err)
	}
	return s, nil
}

// Start runs one pass immediately and then starts the schedule. Passes use
// ctx; cancelling it aborts in-flight work.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.tick()
	s.cron.Start()
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) tick() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	res, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("reconciliation pass failed")
	}
	if s.onResult != nil {
		s.onResult(res, err)
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
