package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"mediumpilot/internal/pipeline"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.Report, error)
}

type Scheduler struct {
	ctx          context.Context
	cron         *cron.Cron
	spec         string
	runner       CycleRunner
	cycleTimeout time.Duration
	log          *slog.Logger
}

// New builds a scheduler that triggers cycles on spec, a standard five-field
// cron expression evaluated in loc. Overlapping runs are skipped.
func New(
	ctx context.Context,
	spec string,
	loc *time.Location,
	runner CycleRunner,
	cycleTimeout time.Duration,
	log *slog.Logger,
) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		ctx:          ctx,
		cron:         c,
		spec:         strings.TrimSpace(spec),
		runner:       runner,
		cycleTimeout: cycleTimeout,
		log:          log,
	}
}

func (s *Scheduler) Start() error {
	if s.spec == "" {
		return errors.New("cron spec is empty")
	}

	if _, err := s.cron.AddFunc(s.spec, s.runCycle); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runCycle() {
	ctx := s.ctx
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.cycleTimeout)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	report, err := s.runner.RunCycle(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to run scheduled cycle",
			"error", err,
			"spec", s.spec)
		return
	}

	s.log.InfoContext(ctx, "Scheduled cycle is done",
		"cycleID", report.CycleID,
		"spec", s.spec,
		"published", report.Count(pipeline.StatusPublished),
		"failed", report.Count(pipeline.StatusFailed))
}
