package worker

import (
	"context"
	"errors"
	"time"

	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/usecase"
	"github.com/secmon-lab/riskcascade/pkg/utils/errutil"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
)

// Runner performs one analysis run
type Runner interface {
	Run(ctx context.Context) (*model.AnalysisRun, error)
}

// AnalysisScheduler recomputes the cascade graph on a fixed interval.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - A tick that finds a run already in progress is skipped, not queued
type AnalysisScheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	stopCh     chan struct{}
	doneCh     chan struct{}
}

type SchedulerOption func(*AnalysisScheduler)

// WithRunOnStart runs an analysis right after Start instead of waiting for
// the first tick
func WithRunOnStart(enabled bool) SchedulerOption {
	return func(s *AnalysisScheduler) {
		s.runOnStart = enabled
	}
}

// NewAnalysisScheduler creates a scheduler. interval must be positive.
func NewAnalysisScheduler(runner Runner, interval time.Duration, opts ...SchedulerOption) *AnalysisScheduler {
	s := &AnalysisScheduler{
		runner:   runner,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background loop without blocking
func (s *AnalysisScheduler) Start(ctx context.Context) {
	logging.From(ctx).Info("analysis scheduler starting",
		"interval", s.interval.String(),
		"run_on_start", s.runOnStart)

	go s.loop(ctx)
}

// Stop signals the scheduler to stop and waits for the current run to finish
func (s *AnalysisScheduler) Stop() {
	logging.Default().Info("analysis scheduler stopping")
	close(s.stopCh)
	<-s.doneCh
	logging.Default().Info("analysis scheduler stopped")
}

func (s *AnalysisScheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	if s.runOnStart {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)

		case <-s.stopCh:
			return

		case <-ctx.Done():
			logging.From(ctx).Info("analysis scheduler context cancelled")
			return
		}
	}
}

func (s *AnalysisScheduler) runOnce(ctx context.Context) {
	run, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		logging.From(ctx).Info("scheduled analysis skipped, another run is in progress")
	case err != nil:
		_ = errutil.Handle(ctx, err, "scheduled analysis failed (will retry next interval)")
	default:
		logging.From(ctx).Info("scheduled analysis completed",
			"run_id", run.ID.String(),
			"converged", run.Converged())
	}
}
