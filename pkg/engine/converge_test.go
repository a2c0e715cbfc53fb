package engine_test

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
	"github.com/secmon-lab/riskcascade/pkg/engine"
)

func cyclicGraph(t *testing.T) *engine.Graph {
	t.Helper()
	a := newRisk(1, types.ScenarioValues{0.1, 0, 0})
	b := newRisk(2, types.ScenarioValues{0.2, 0, 0})
	return mustGraph(t, []*model.Risk{a, b}, []*model.Cascade{
		newCascade(1, 1, 2, types.ConditionalMatrix{{0.5}}),
		newCascade(2, 2, 1, types.ConditionalMatrix{{0.4}}),
	})
}

func TestConverge_CyclicGraph(t *testing.T) {
	g := cyclicGraph(t)

	result, err := engine.Converge(g, &engine.Options{
		DampingFactor: 0.5,
		MaxRuns:       50,
		Tolerance:     1e-9,
	})
	gt.NoError(t, err).Required()
	gt.Bool(t, result.Converged).True()
	gt.Number(t, result.Runs).Less(50)

	// a = 0.1 + 0.4b, b = 0.2 + 0.5a
	a := g.Node(1).TP[types.ScenarioConsiderable]
	b := g.Node(2).TP[types.ScenarioConsiderable]
	gt.Bool(t, near(a, 0.225, 1e-6)).True()
	gt.Bool(t, near(b, 0.3125, 1e-6)).True()
	gt.Bool(t, near(a, 0.1+0.4*b, 1e-6)).True()
	gt.Bool(t, near(b, 0.2+0.5*a, 1e-6)).True()
	gt.Bool(t, near(result.Total, a+b, epsilon)).True()
}

func TestConverge_Properties(t *testing.T) {
	risks := []*model.Risk{
		newRisk(1, types.ScenarioValues{0.1, 0.05, 0.01}),
		newRisk(2, types.ScenarioValues{0.02, 0.01, 0.001}),
		newRisk(3, types.ScenarioValues{0, 0, 0}),
		newRisk(4, types.ScenarioValues{0.3, 0.1, 0}),
	}
	m := types.ConditionalMatrix{{0.2, 0.1, 0}, {0.1, 0.3, 0.1}, {0, 0.2, 0.4}}
	damped := newCascade(4, 4, 1, m)
	damped.Damp = true
	g := mustGraph(t, risks, []*model.Cascade{
		newCascade(1, 1, 2, m),
		newCascade(2, 2, 3, m),
		newCascade(3, 3, 1, m),
		damped,
		newCascade(5, 1, 3, m),
	})

	_, err := engine.Converge(g, nil)
	gt.NoError(t, err).Required()

	for _, n := range g.Nodes {
		for _, s := range types.AllScenarios() {
			gt.Value(t, n.TP[s]).Equal(n.DP[s] + n.IP[s])
			gt.Bool(t, n.TP[s] >= 0).True()
		}
		if n.TotalProbability > 0 {
			gt.Bool(t, near(n.RP.Sum(), 1, epsilon)).True()
		}
	}
}

func TestConverge_Idempotent(t *testing.T) {
	risks := []*model.Risk{
		newRisk(1, types.ScenarioValues{0.1, 0.05, 0.01}),
		newRisk(2, types.ScenarioValues{0.01, 0, 0}),
		newRisk(3, types.ScenarioValues{}),
	}
	m := types.ConditionalMatrix{{0.5, 0.1, 0}, {0, 0.5, 0.1}, {0, 0, 0.5}}
	g := mustGraph(t, risks, []*model.Cascade{
		newCascade(1, 1, 2, m),
		newCascade(2, 2, 3, m),
	})

	opts := &engine.Options{MaxRuns: 10, Tolerance: 1e-12}
	first, err := engine.Converge(g, opts)
	gt.NoError(t, err).Required()
	gt.Bool(t, first.Converged).True()

	second, err := engine.Converge(g, opts)
	gt.NoError(t, err).Required()
	gt.Bool(t, second.Converged).True()
	gt.Value(t, second.Runs).Equal(1)
	gt.Value(t, second.Delta).Equal(0.0)
	gt.Value(t, second.MaxNodeDelta).Equal(0.0)
}

func TestConverge_IdempotentOnCycle(t *testing.T) {
	g := cyclicGraph(t)

	opts := &engine.Options{MaxRuns: 100, Tolerance: 1e-12}
	first, err := engine.Converge(g, opts)
	gt.NoError(t, err).Required()
	gt.Bool(t, first.Converged).True()
	gt.Number(t, first.Runs).Greater(1)

	second, err := engine.Converge(g, opts)
	gt.NoError(t, err).Required()
	gt.Bool(t, second.Converged).True()
	gt.Value(t, second.Runs).Equal(1)
	gt.Number(t, second.Delta).LessOrEqual(opts.Tolerance)
	gt.Number(t, second.MaxNodeDelta).LessOrEqual(opts.Tolerance)
}

func TestConverge_NotConverged(t *testing.T) {
	g := cyclicGraph(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	result, err := engine.Converge(g, &engine.Options{
		MaxRuns:   1,
		Tolerance: 1e-9,
		Logger:    logger,
	})
	gt.NoError(t, err).Required()
	gt.Bool(t, result.Converged).False()
	gt.Value(t, result.Runs).Equal(1)
	gt.String(t, buf.String()).Contains("did not converge")

	// last iteration values are kept
	gt.Value(t, g.Node(2).TP[types.ScenarioConsiderable]).Equal(0.2 + 0.5*0.1)
}

func TestConverge_PerNodeCriterion(t *testing.T) {
	// Node 3 is far smaller than the rest, so its relative change hides in
	// the aggregate
	risks := []*model.Risk{
		newRisk(1, types.ScenarioValues{100, 0, 0}),
		newRisk(2, types.ScenarioValues{1e-6, 0, 0}),
		newRisk(3, types.ScenarioValues{}),
	}
	g := mustGraph(t, risks, []*model.Cascade{
		newCascade(1, 2, 3, types.ConditionalMatrix{{0.5}}),
		newCascade(2, 3, 2, types.ConditionalMatrix{{0.9}}),
	})

	aggregate, err := engine.Converge(g, &engine.Options{MaxRuns: 100, Tolerance: 1e-3})
	gt.NoError(t, err).Required()
	gt.Bool(t, aggregate.Converged).True()
	gt.Value(t, aggregate.Runs).Equal(1)
	gt.Number(t, aggregate.MaxNodeDelta).Greater(1e-3)

	g.Reset()
	perNode, err := engine.Converge(g, &engine.Options{
		MaxRuns:   100,
		Tolerance: 1e-3,
		Criterion: engine.CriterionPerNode,
	})
	gt.NoError(t, err).Required()
	gt.Bool(t, perNode.Converged).True()
	gt.Number(t, perNode.Runs).Greater(1)
	gt.Number(t, perNode.MaxNodeDelta).Less(1e-3)
}

func TestConverge_NaNIsFatal(t *testing.T) {
	g := cyclicGraph(t)
	g.Nodes[index(t, g, 1)].DP[types.ScenarioConsiderable] = math.NaN()

	result, err := engine.Converge(g, nil)
	gt.Error(t, err).Is(engine.ErrNumericIntegrity)
	gt.Value(t, result).Nil()
}

func TestConverge_EmptyGraph(t *testing.T) {
	g := mustGraph(t, nil, nil)
	result, err := engine.Converge(g, nil)
	gt.NoError(t, err).Required()
	gt.Bool(t, result.Converged).True()
	gt.Value(t, result.Total).Equal(0.0)
}

func TestOptions_Validate(t *testing.T) {
	opts := &engine.Options{
		DampingFactor: 1.5,
		MaxRuns:       -1,
		Tolerance:     0,
		Criterion:     "bogus",
	}
	opts.Validate()

	gt.Value(t, opts.DampingFactor).Equal(engine.DefaultDampingFactor)
	gt.Value(t, opts.MaxRuns).Equal(engine.DefaultMaxRuns)
	gt.Value(t, opts.Tolerance).Equal(engine.DefaultTolerance)
	gt.Value(t, opts.Criterion).Equal(engine.CriterionAggregate)
	gt.Value(t, opts.Logger).NotNil()
}

func TestConverge_DoesNotModifyOptions(t *testing.T) {
	g := cyclicGraph(t)
	opts := &engine.Options{MaxRuns: 0, Tolerance: -1, Criterion: "bogus"}

	_, err := engine.Converge(g, opts)
	gt.NoError(t, err).Required()
	_, err = engine.ConvergeImpact(g, opts)
	gt.NoError(t, err).Required()

	gt.Value(t, opts.MaxRuns).Equal(0)
	gt.Value(t, opts.Tolerance).Equal(-1.0)
	gt.Value(t, opts.Criterion).Equal(engine.Criterion("bogus"))
	gt.Value(t, opts.Logger).Nil()
}

func TestConverge_DampingFactor(t *testing.T) {
	tests := []struct {
		name string
		opts *engine.Options
		want float64
	}{
		{"zero cuts damped cascades", &engine.Options{MaxRuns: 5}, 0},
		{"default factor", engine.DefaultOptions(), 0.2},
		{"full factor", &engine.Options{DampingFactor: 1, MaxRuns: 5}, 0.4},
		{"nil options use default factor", nil, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newRisk(1, types.ScenarioValues{0.4, 0, 0})
			b := newRisk(2, types.ScenarioValues{})
			c := newCascade(1, 1, 2, types.ConditionalMatrix{{1}})
			c.Damp = true
			g := mustGraph(t, []*model.Risk{a, b}, []*model.Cascade{c})

			_, err := engine.Converge(g, tt.opts)
			gt.NoError(t, err).Required()
			gt.Bool(t, near(g.Node(2).IP[types.ScenarioConsiderable], tt.want, epsilon)).True()
		})
	}
}

func TestParseCriterion(t *testing.T) {
	c, err := engine.ParseCriterion("per-node")
	gt.NoError(t, err).Required()
	gt.Value(t, c).Equal(engine.CriterionPerNode)

	_, err = engine.ParseCriterion("max")
	gt.Value(t, err).NotNil()
}
