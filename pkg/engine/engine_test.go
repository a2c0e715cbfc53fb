package engine_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
	"github.com/secmon-lab/riskcascade/pkg/engine"
)

func TestRun(t *testing.T) {
	a := newRisk(1, types.ScenarioValues{0.1, 0.05, 0.01})
	a.DirectImpact[types.ScenarioConsiderable][types.DamageHb] = 1e7
	b := newRisk(2, types.ScenarioValues{0.02, 0.01, 0})
	b.DirectImpact[types.ScenarioExtreme][types.DamageSa] = 3e9
	risks := []*model.Risk{a, b}
	cascades := []*model.Cascade{
		newCascade(10, 1, 2, types.ConditionalMatrix{{0.3, 0.1, 0}, {0, 0.4, 0.1}, {0, 0, 0.6}}),
		newCascade(11, 2, 1, types.ConditionalMatrix{{0.1, 0, 0}, {0, 0.1, 0}, {0, 0, 0.1}}),
	}
	g := mustGraph(t, risks, cascades)

	result, err := engine.Run(g, metaOf(a, b), nil, engine.DefaultScales(), nil)
	gt.NoError(t, err).Required()
	gt.Bool(t, result.Probability.Converged).True()
	gt.Bool(t, result.Impact.Converged).True()

	calcs := g.RiskCalculations()
	gt.Array(t, calcs).Length(2)
	for _, c := range calcs {
		gt.Number(t, c.TotalProbability).Greater(0.0)
		gt.Number(t, c.TotalRisk).Greater(0.0)
		gt.Bool(t, near(c.RP.Sum(), 1, epsilon)).True()
	}

	edges := g.CascadeCalculations()
	gt.Array(t, edges).Length(2)
	gt.Value(t, edges[0].CascadeID).Equal(int64(10))
	gt.Value(t, edges[0].CauseID).Equal(int64(1))
	gt.Value(t, edges[0].EffectID).Equal(int64(2))

	t.Run("rerun from scratch gives identical values", func(t *testing.T) {
		again, err := engine.Run(g, metaOf(a, b), nil, engine.DefaultScales(), nil)
		gt.NoError(t, err).Required()
		gt.Value(t, again.Probability.Runs).Equal(result.Probability.Runs)
		gt.Value(t, g.RiskCalculations()).Equal(calcs)
	})
}

func TestRun_ConcurrentRunRejected(t *testing.T) {
	a := newRisk(1, types.ScenarioValues{0.1, 0, 0})
	g := mustGraph(t, []*model.Risk{a}, nil)

	unlock := engine.LockGraph(g)
	defer unlock()

	_, err := engine.Run(g, metaOf(a), nil, engine.DefaultScales(), nil)
	gt.Error(t, err).Is(engine.ErrConcurrentRun)
}

func TestRun_NaNAbortsRun(t *testing.T) {
	a := newRisk(1, types.ScenarioValues{0.1, 0, 0})
	b := newRisk(2, types.ScenarioValues{0.1, 0, 0})
	g := mustGraph(t, []*model.Risk{a, b}, []*model.Cascade{newCascade(1, 1, 2, identity)})
	g.Nodes[0].DP[types.ScenarioConsiderable] = math.NaN()

	_, err := engine.Run(g, metaOf(a, b), nil, engine.DefaultScales(), nil)
	gt.Error(t, err).Is(engine.ErrNumericIntegrity)
}
