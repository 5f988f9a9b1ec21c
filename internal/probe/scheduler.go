package probe

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule runs the probe every five minutes.
const DefaultSchedule = "@every 5m"

// Scheduler runs a Prober on a cron schedule. A run still in progress when the next one
// is due causes that tick to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	prober *Prober
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler parses schedule (standard five-field cron or a descriptor such as
// "@every 5m") and registers the probe job. Call Start to begin.
func NewScheduler(schedule string, prober *Prober, logger *zap.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, prober: prober, logger: logger, ctx: ctx, cancel: cancel}
	if _, err := c.AddFunc(schedule, s.runOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("probe schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	if _, err := s.prober.Run(s.ctx); err != nil {
		s.logger.Warn("probe run had failures", zap.Error(err))
	}
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("probe scheduler started", zap.Int("locations", len(s.prober.locations)))
}

// Stop stops scheduling, cancels a probe in progress and waits for it to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zap to cron.Logger. Scheduling chatter goes to Debug.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
