package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

func sampleRun(finishedAt time.Time) *model.AnalysisRun {
	var ti types.ImpactValues
	ti[types.ScenarioMajor][types.DamageEa] = 4.5e8

	return &model.AnalysisRun{
		ID: model.NewAnalysisRunID(),
		Parameters: model.AnalysisParameters{
			DampingFactor: 0.5,
			MaxRuns:       10,
			Tolerance:     0.001,
			Criterion:     "aggregate",
		},
		Probability: model.ConvergenceSummary{Runs: 4, Converged: true, Delta: 0.0004, MaxNodeDelta: 0.0009, Total: 1.25},
		Impact:      model.ConvergenceSummary{Runs: 10, Converged: false, Delta: 0.02, MaxNodeDelta: 0.05, Total: 3e9},
		Risks: []*model.RiskCalculation{
			{
				RiskID:           1,
				Title:            "Flood",
				DP:               types.ScenarioValues{0.1, 0.01, 0.001},
				IP:               types.ScenarioValues{0.05, 0, 0},
				TP:               types.ScenarioValues{0.15, 0.01, 0.001},
				RP:               types.ScenarioValues{0.6, 0.3, 0.1},
				TI:               ti,
				TR:               types.ScenarioValues{0, 4.5e6, 0},
				TotalProbability: 0.161,
				TotalRisk:        1.5e6,
				Metrics: model.RiskMetrics{
					Importance:  model.ImportanceMetrics{Subjective: 3, Cause: 1.2, Effect: 0.4, Total: 0.9},
					Reliability: model.ReliabilityMetrics{Own: 0.5, Causes: 1, Effects: 0.75, Total: 0.69},
				},
			},
			{RiskID: 2, Title: "Drought"},
		},
		Cascades: []*model.CascadeCalculation{
			{CascadeID: 7, CauseID: 2, EffectID: 1, IP: types.ScenarioValues{0.05, 0, 0}, IRCause: types.ScenarioValues{0.1, 0, 0}},
		},
		StartedAt:  finishedAt.Add(-time.Second),
		FinishedAt: finishedAt,
	}
}

func runAnalysisRunRepositoryTest(t *testing.T, newRepo repoFactory) {
	t.Run("Save and Get round trip calculations", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		run := sampleRun(time.Now().UTC().Truncate(time.Millisecond))
		gt.NoError(t, repo.AnalysisRun().Save(ctx, run)).Required()

		got, err := repo.AnalysisRun().Get(ctx, run.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(run.ID)
		gt.Value(t, got.Parameters).Equal(run.Parameters)
		gt.Value(t, got.Probability).Equal(run.Probability)
		gt.Value(t, got.Impact).Equal(run.Impact)
		gt.Bool(t, got.Converged()).False()
		gt.Bool(t, got.FinishedAt.Equal(run.FinishedAt)).True()

		gt.Array(t, got.Risks).Length(2)
		flood := got.Risk(1)
		gt.Value(t, flood).NotNil()
		gt.Value(t, flood.TP).Equal(run.Risks[0].TP)
		gt.Value(t, flood.TI).Equal(run.Risks[0].TI)
		gt.Value(t, flood.Metrics).Equal(run.Risks[0].Metrics)
		gt.Value(t, flood.TotalRisk).Equal(1.5e6)

		gt.Array(t, got.Cascades).Length(1)
		gt.Value(t, got.Cascades[0].CascadeID).Equal(int64(7))
		gt.Value(t, got.Cascades[0].IRCause).Equal(run.Cascades[0].IRCause)
	})

	t.Run("Get returns ErrNotFound for unknown ID", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.AnalysisRun().Get(context.Background(), model.NewAnalysisRunID())
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("List returns newest first and honours limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		base := time.Now().UTC().Truncate(time.Second)
		old := sampleRun(base.Add(-2 * time.Hour))
		mid := sampleRun(base.Add(-time.Hour))
		latest := sampleRun(base)
		for _, run := range []*model.AnalysisRun{mid, latest, old} {
			gt.NoError(t, repo.AnalysisRun().Save(ctx, run)).Required()
		}

		runs, err := repo.AnalysisRun().List(ctx, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, runs).Length(3)
		gt.Value(t, runs[0].ID).Equal(latest.ID)
		gt.Value(t, runs[1].ID).Equal(mid.ID)
		gt.Value(t, runs[2].ID).Equal(old.ID)

		limited, err := repo.AnalysisRun().List(ctx, 2)
		gt.NoError(t, err).Required()
		gt.Array(t, limited).Length(2)

		got, err := repo.AnalysisRun().Latest(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(latest.ID)
	})

	t.Run("Latest returns ErrNotFound when empty", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.AnalysisRun().Latest(context.Background())
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("Save replaces an existing run", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		run := sampleRun(time.Now().UTC().Truncate(time.Millisecond))
		gt.NoError(t, repo.AnalysisRun().Save(ctx, run)).Required()

		run.Risks = run.Risks[:1]
		run.Risks[0].Title = "Flood (revised)"
		gt.NoError(t, repo.AnalysisRun().Save(ctx, run)).Required()

		got, err := repo.AnalysisRun().Get(ctx, run.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Risk(1).Title).Equal("Flood (revised)")
	})

	t.Run("Save rejects a run without ID", func(t *testing.T) {
		repo := newRepo(t)
		run := sampleRun(time.Now().UTC().Truncate(time.Millisecond))
		run.ID = ""
		gt.Error(t, repo.AnalysisRun().Save(context.Background(), run))
	})
}

func TestAnalysisRunRepository(t *testing.T) {
	forEachBackend(t, runAnalysisRunRepositoryTest)
}
