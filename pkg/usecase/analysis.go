package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/engine"
	"github.com/secmon-lab/riskcascade/pkg/utils/async"
	"github.com/secmon-lab/riskcascade/pkg/utils/errutil"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// AnalysisUseCase recomputes the whole cascade graph from the catalogue and
// stores the result as an immutable AnalysisRun.
//
// Only one run is computed at a time per process. Concurrent requests fail
// fast with ErrRunInProgress instead of queueing.
type AnalysisUseCase struct {
	repo     interfaces.Repository
	options  engine.Options
	scales   engine.Scales
	notifier interfaces.Notifier
	exporter interfaces.Exporter
	now      func() time.Time

	mu sync.Mutex
}

type AnalysisOption func(*AnalysisUseCase)

func WithRunNotifier(n interfaces.Notifier) AnalysisOption {
	return func(uc *AnalysisUseCase) {
		uc.notifier = n
	}
}

func WithRunExporter(e interfaces.Exporter) AnalysisOption {
	return func(uc *AnalysisUseCase) {
		uc.exporter = e
	}
}

// WithClock replaces time.Now for run timestamps
func WithClock(now func() time.Time) AnalysisOption {
	return func(uc *AnalysisUseCase) {
		uc.now = now
	}
}

// NewAnalysisUseCase creates an AnalysisUseCase. Nil opts selects the
// engine defaults; out-of-range values are replaced by defaults.
func NewAnalysisUseCase(repo interfaces.Repository, opts *engine.Options, scales engine.Scales, options ...AnalysisOption) *AnalysisUseCase {
	if opts == nil {
		opts = engine.DefaultOptions()
	}
	copied := *opts
	copied.Validate()

	uc := &AnalysisUseCase{
		repo:    repo,
		options: copied,
		scales:  scales,
		now:     time.Now,
	}
	for _, opt := range options {
		opt(uc)
	}
	return uc
}

// Options returns the effective engine settings
func (uc *AnalysisUseCase) Options() engine.Options {
	return uc.options
}

type catalogue struct {
	risks          []*model.Risk
	cascades       []*model.Cascade
	participations []*model.Participation
}

func (uc *AnalysisUseCase) loadCatalogue(ctx context.Context) (*catalogue, error) {
	ctx, span := tracer.Start(ctx, "AnalysisUseCase.loadCatalogue")
	defer span.End()

	var cat catalogue
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		risks, err := uc.repo.Risk().List(ctx)
		if err != nil {
			return goerr.Wrap(err, "failed to list risks")
		}
		cat.risks = risks
		return nil
	})
	eg.Go(func() error {
		cascades, err := uc.repo.Cascade().List(ctx)
		if err != nil {
			return goerr.Wrap(err, "failed to list cascades")
		}
		cat.cascades = cascades
		return nil
	})
	eg.Go(func() error {
		participations, err := uc.repo.Participation().List(ctx)
		if err != nil {
			return goerr.Wrap(err, "failed to list participations")
		}
		cat.participations = participations
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("risks", len(cat.risks)),
		attribute.Int("cascades", len(cat.cascades)),
		attribute.Int("participations", len(cat.participations)),
	)
	return &cat, nil
}

// Run performs one full analysis. Export and notification failures are
// reported but do not fail the run once it has been persisted.
func (uc *AnalysisUseCase) Run(ctx context.Context) (*model.AnalysisRun, error) {
	if !uc.mu.TryLock() {
		return nil, goerr.Wrap(ErrRunInProgress, "analysis is already running")
	}
	defer uc.mu.Unlock()

	return uc.run(ctx)
}

// RunAsync starts an analysis in the background and returns once the run
// slot is taken. Failures of the background run are logged and reported.
func (uc *AnalysisUseCase) RunAsync(ctx context.Context) error {
	if !uc.mu.TryLock() {
		return goerr.Wrap(ErrRunInProgress, "analysis is already running")
	}

	async.Dispatch(ctx, func(ctx context.Context) error {
		defer uc.mu.Unlock()
		_, err := uc.run(ctx)
		return err
	})
	return nil
}

func (uc *AnalysisUseCase) run(ctx context.Context) (*model.AnalysisRun, error) {
	runID := model.NewAnalysisRunID()
	logger := logging.From(ctx).With(RunIDKey, runID.String())
	ctx = logging.With(ctx, logger)

	ctx, span := tracer.Start(ctx, "AnalysisUseCase.Run",
		trace.WithAttributes(
			attribute.String(RunIDKey, runID.String()),
			attribute.String("criterion", string(uc.options.Criterion)),
		),
	)
	defer span.End()

	startedAt := uc.now().UTC()
	logger.Info("analysis started")

	run, err := uc.compute(ctx, runID, startedAt)
	if err != nil {
		analysisRunsTotal.WithLabelValues(resultFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, err
	}

	if err := uc.repo.AnalysisRun().Save(ctx, run); err != nil {
		analysisRunsTotal.WithLabelValues(resultFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save run")
		return nil, goerr.Wrap(err, "failed to save analysis run", goerr.V(RunIDKey, run.ID))
	}

	result := resultConverged
	if !run.Converged() {
		result = resultNotConverged
		logger.Warn("analysis finished without convergence",
			"probability_runs", run.Probability.Runs,
			"probability_delta", run.Probability.Delta,
			"impact_runs", run.Impact.Runs,
			"impact_delta", run.Impact.Delta,
		)
	}
	analysisRunsTotal.WithLabelValues(result).Inc()
	analysisDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	analysisIterations.WithLabelValues("probability").Observe(float64(run.Probability.Runs))
	analysisIterations.WithLabelValues("impact").Observe(float64(run.Impact.Runs))

	span.SetAttributes(
		attribute.Bool("converged", run.Converged()),
		attribute.Int("probability_runs", run.Probability.Runs),
		attribute.Int("impact_runs", run.Impact.Runs),
	)

	logger.Info("analysis finished",
		"risks", len(run.Risks),
		"cascades", len(run.Cascades),
		"converged", run.Converged(),
		"duration", run.FinishedAt.Sub(run.StartedAt).String(),
	)

	uc.publish(ctx, run)

	return run, nil
}

func (uc *AnalysisUseCase) compute(ctx context.Context, runID model.AnalysisRunID, startedAt time.Time) (*model.AnalysisRun, error) {
	cat, err := uc.loadCatalogue(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load catalogue")
	}
	if len(cat.risks) == 0 {
		return nil, goerr.Wrap(ErrEmptyCatalogue, "nothing to analyse")
	}

	_, span := tracer.Start(ctx, "AnalysisUseCase.compute")
	defer span.End()

	graph, err := engine.NewGraph(cat.risks, cat.cascades)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build risk graph")
	}

	meta := make(map[int64]*model.Risk, len(cat.risks))
	for _, r := range cat.risks {
		meta[r.ID] = r
	}

	opts := uc.options
	opts.Logger = logging.From(ctx)

	result, err := engine.Run(graph, meta, cat.participations, uc.scales, &opts)
	if err != nil {
		return nil, goerr.Wrap(err, "engine run failed", goerr.V(RunIDKey, runID))
	}

	return &model.AnalysisRun{
		ID: runID,
		Parameters: model.AnalysisParameters{
			DampingFactor: opts.DampingFactor,
			MaxRuns:       opts.MaxRuns,
			Tolerance:     opts.Tolerance,
			Criterion:     string(opts.Criterion),
		},
		Probability: summarize(result.Probability),
		Impact:      summarize(result.Impact),
		Risks:       graph.RiskCalculations(),
		Cascades:    graph.CascadeCalculations(),
		StartedAt:   startedAt,
		FinishedAt:  uc.now().UTC(),
	}, nil
}

func summarize(r *engine.ConvergenceResult) model.ConvergenceSummary {
	if r == nil {
		return model.ConvergenceSummary{}
	}
	return model.ConvergenceSummary{
		Runs:         r.Runs,
		Converged:    r.Converged,
		Delta:        r.Delta,
		MaxNodeDelta: r.MaxNodeDelta,
		Total:        r.Total,
	}
}

// publish exports and announces a persisted run
func (uc *AnalysisUseCase) publish(ctx context.Context, run *model.AnalysisRun) {
	if uc.exporter != nil {
		location, err := uc.exporter.Export(ctx, run)
		if err != nil {
			_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to export analysis run", goerr.V(RunIDKey, run.ID)), "export failed")
		} else {
			logging.From(ctx).Info("analysis run exported", "location", location)
		}
	}

	if uc.notifier != nil {
		if err := uc.notifier.NotifyRun(ctx, run); err != nil {
			_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to notify analysis run", goerr.V(RunIDKey, run.ID)), "notification failed")
		}
	}
}

// GetRun returns a stored run
func (uc *AnalysisUseCase) GetRun(ctx context.Context, id model.AnalysisRunID) (*model.AnalysisRun, error) {
	run, err := uc.repo.AnalysisRun().Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrRunNotFound, "analysis run not found", goerr.V(RunIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get analysis run", goerr.V(RunIDKey, id))
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first
func (uc *AnalysisUseCase) ListRuns(ctx context.Context, limit int) ([]*model.AnalysisRun, error) {
	runs, err := uc.repo.AnalysisRun().List(ctx, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list analysis runs")
	}
	return runs, nil
}

// LatestRun returns the most recently finished run
func (uc *AnalysisUseCase) LatestRun(ctx context.Context) (*model.AnalysisRun, error) {
	run, err := uc.repo.AnalysisRun().Latest(ctx)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrNoRunsYet, "no analysis run available")
		}
		return nil, goerr.Wrap(err, "failed to get latest analysis run")
	}
	return run, nil
}

// RiskResult is the per-risk view of a run: its calculation plus the
// cascades it takes part in
type RiskResult struct {
	RunID     model.AnalysisRunID
	Risk      *model.RiskCalculation
	Causes    []*model.CascadeCalculation
	Effects   []*model.CascadeCalculation
	Converged bool
}

// GetRiskResult extracts the result of one risk from a stored run
func (uc *AnalysisUseCase) GetRiskResult(ctx context.Context, runID model.AnalysisRunID, riskID int64) (*RiskResult, error) {
	run, err := uc.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	calc := run.Risk(riskID)
	if calc == nil {
		return nil, goerr.Wrap(ErrRiskNotInRun, "risk not found in run",
			goerr.V(RunIDKey, runID), goerr.V(RiskIDKey, riskID))
	}

	result := &RiskResult{
		RunID:     run.ID,
		Risk:      calc,
		Converged: run.Converged(),
	}
	for _, c := range run.Cascades {
		if c.EffectID == riskID {
			result.Causes = append(result.Causes, c)
		}
		if c.CauseID == riskID {
			result.Effects = append(result.Effects, c)
		}
	}
	return result, nil
}
