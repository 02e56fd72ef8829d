// Package reconcile periodically repairs the question gate.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/questionbot/core/idgen"
	"github.com/m3rciful/questionbot/core/logger"
	"github.com/m3rciful/questionbot/core/questions"
)

// Reconciler repairs the gate once per call.
type Reconciler interface {
	Reconcile(ctx context.Context) (questions.Repair, error)
}

// Scheduler runs a Reconciler on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	engine  *cron.Cron
	target  Reconciler
	timeout time.Duration
	log     *slog.Logger
}

// NewScheduler registers target under spec, e.g. "@every 10m".
func NewScheduler(spec string, target Reconciler, timeout time.Duration) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	s := &Scheduler{
		engine:  cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		target:  target,
		timeout: timeout,
		log:     logger.Component("reconcile"),
	}
	if _, err := s.engine.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("reconcile: invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.engine.Start()
	logger.LogEvent(context.Background(), s.log, slog.LevelInfo, "reconcile.start")
}

// Stop prevents new runs and waits for a running one to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.engine.Stop().Done():
	case <-ctx.Done():
	}
	logger.LogEvent(context.Background(), s.log, slog.LevelInfo, "reconcile.stop")
}

// RunOnce performs a single reconcile pass.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(logger.WithRID(context.Background(), idgen.MustGenerate("rec-")), s.timeout)
	defer cancel()

	start := time.Now()
	rep, err := s.target.Reconcile(ctx)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, logger.ErrAttr(err))
		logger.LogEvent(ctx, s.log, slog.LevelWarn, "reconcile.run", attrs...)
		return
	}
	attrs = append(attrs,
		slog.Bool("prompt_sent", rep.PromptSent),
		slog.Int("deleted", rep.Deleted),
	)
	level := slog.LevelDebug
	if rep.Changed() {
		level = slog.LevelInfo
	}
	logger.LogEvent(ctx, s.log, level, "reconcile.run", attrs...)
}
