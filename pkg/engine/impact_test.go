package engine_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
	"github.com/secmon-lab/riskcascade/pkg/engine"
)

var identity = types.ConditionalMatrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func TestPropagateImpact_FlowsBackToCause(t *testing.T) {
	cause := newRisk(1, types.ScenarioValues{0.1, 0.1, 0.1})
	cause.DirectImpact[types.ScenarioMajor][types.DamageFa] = 1000
	effect := newRisk(2, types.ScenarioValues{})
	effect.DirectImpact[types.ScenarioMajor][types.DamageHa] = 40
	effect.DirectImpact[types.ScenarioExtreme][types.DamageHa] = 100

	m := types.ConditionalMatrix{{0, 0, 0}, {0, 0.5, 0.25}, {0, 0, 1}}
	g := mustGraph(t, []*model.Risk{cause, effect}, []*model.Cascade{newCascade(1, 1, 2, m)})
	ic := index(t, g, 1)

	gt.NoError(t, engine.PropagateImpact(g, ic, 1)).Required()
	gt.NoError(t, engine.AggregateImpact(g, ic)).Required()

	n := g.Nodes[ic]
	// major: 0.5×40 + 0.25×100
	gt.Value(t, n.II[types.ScenarioMajor][types.DamageHa]).Equal(45.0)
	gt.Value(t, n.II[types.ScenarioExtreme][types.DamageHa]).Equal(100.0)
	gt.Value(t, n.II[types.ScenarioConsiderable][types.DamageHa]).Equal(0.0)
	gt.Value(t, n.TI[types.ScenarioMajor][types.DamageHa]).Equal(45.0)
	gt.Value(t, n.TI[types.ScenarioMajor][types.DamageFa]).Equal(1000.0)
	gt.Value(t, g.Edges[0].II[types.ScenarioMajor][types.DamageHa]).Equal(45.0)

	// effects do not inherit impact from their causes
	ie := index(t, g, 2)
	gt.NoError(t, engine.PropagateImpact(g, ie, 1)).Required()
	gt.Value(t, g.Nodes[ie].II).Equal(types.ImpactValues{})
}

func TestPropagateImpact_Damping(t *testing.T) {
	cause := newRisk(1, types.ScenarioValues{})
	effect := newRisk(2, types.ScenarioValues{})
	effect.DirectImpact[types.ScenarioConsiderable][types.DamageEa] = 10
	c := newCascade(1, 1, 2, identity)
	c.Damp = true
	g := mustGraph(t, []*model.Risk{cause, effect}, []*model.Cascade{c})

	gt.NoError(t, engine.PropagateImpact(g, 0, 0.5)).Required()
	gt.Value(t, g.Nodes[0].II[types.ScenarioConsiderable][types.DamageEa]).Equal(5.0)
}

func TestPropagateImpact_NaN(t *testing.T) {
	cause := newRisk(1, types.ScenarioValues{})
	effect := newRisk(2, types.ScenarioValues{})
	g := mustGraph(t, []*model.Risk{cause, effect}, []*model.Cascade{newCascade(1, 1, 2, identity)})
	g.Nodes[1].TI[types.ScenarioExtreme][types.DamageSc] = math.NaN()

	gt.Error(t, engine.PropagateImpact(g, 0, 1)).Is(engine.ErrNumericIntegrity)
}

func TestConvergeImpact_Cycle(t *testing.T) {
	a := newRisk(1, types.ScenarioValues{})
	a.DirectImpact[types.ScenarioConsiderable][types.DamageFb] = 100
	b := newRisk(2, types.ScenarioValues{})
	b.DirectImpact[types.ScenarioConsiderable][types.DamageFb] = 200
	g := mustGraph(t, []*model.Risk{a, b}, []*model.Cascade{
		newCascade(1, 1, 2, types.ConditionalMatrix{{0.5}}),
		newCascade(2, 2, 1, types.ConditionalMatrix{{0.5}}),
	})

	result, err := engine.ConvergeImpact(g, &engine.Options{MaxRuns: 100, Tolerance: 1e-10})
	gt.NoError(t, err).Required()
	gt.Bool(t, result.Converged).True()

	// ta = 100 + 0.5tb, tb = 200 + 0.5ta
	ta := g.Node(1).TI[types.ScenarioConsiderable][types.DamageFb]
	tb := g.Node(2).TI[types.ScenarioConsiderable][types.DamageFb]
	gt.Bool(t, near(ta, 800.0/3, 1e-5)).True()
	gt.Bool(t, near(tb, 1000.0/3, 1e-5)).True()
}

func TestValuate(t *testing.T) {
	cause := newRisk(1, types.ScenarioValues{0.2, 0.1, 0.05})
	cause.DirectImpact[types.ScenarioConsiderable][types.DamageHa] = 10
	cause.DirectImpact[types.ScenarioMajor][types.DamageHa] = 20
	cause.DirectImpact[types.ScenarioExtreme][types.DamageHa] = 40
	other := newRisk(3, types.ScenarioValues{0.1, 0.1, 0.1})
	effect := newRisk(2, types.ScenarioValues{0.01, 0.01, 0.01})
	effect.DirectImpact[types.ScenarioConsiderable][types.DamageFa] = 100
	effect.DirectImpact[types.ScenarioMajor][types.DamageFa] = 1000
	effect.DirectImpact[types.ScenarioExtreme][types.DamageFa] = 10000

	m := types.ConditionalMatrix{{0.5, 0.1, 0}, {0.1, 0.5, 0.1}, {0, 0.1, 0.5}}
	g := mustGraph(t, []*model.Risk{cause, effect, other}, []*model.Cascade{
		newCascade(1, 1, 2, m),
		newCascade(2, 3, 2, identity),
	})

	_, err := engine.Converge(g, &engine.Options{MaxRuns: 10, Tolerance: 1e-12})
	gt.NoError(t, err).Required()
	_, err = engine.ConvergeImpact(g, &engine.Options{MaxRuns: 10, Tolerance: 1e-12})
	gt.NoError(t, err).Required()
	gt.NoError(t, engine.Valuate(g)).Required()

	for _, n := range g.Nodes {
		ti := n.TI.Totals()
		for _, s := range types.AllScenarios() {
			gt.Value(t, n.TR[s]).Equal(n.TP[s] * ti[s])
		}
		gt.Bool(t, near(n.TotalRisk, n.TR.Average(), epsilon)).True()
	}

	t.Run("causal attribution law", func(t *testing.T) {
		n := g.Node(2)
		for _, s := range types.AllScenarios() {
			var ir, ip float64
			for _, ei := range n.Causes {
				ir += g.Edges[ei].IRCause[s]
				ip += g.Edges[ei].IP[s]
			}
			want := n.TR[s] * (ip / n.TP[s])
			gt.Bool(t, near(ir, want, 1e-9*math.Max(1, want))).True()
		}
	})

	t.Run("effect attribution is proportional to indirect impact", func(t *testing.T) {
		n := g.Node(1)
		e := g.Edges[n.Effects[0]]
		for _, s := range types.AllScenarios() {
			want := n.TR[s] * e.II.Scenario(s) / n.TI.Scenario(s)
			gt.Bool(t, near(e.IREffect[s], want, 1e-9*math.Max(1, want))).True()
		}
		gt.Bool(t, near(e.IREffectTotal, e.IREffect.Average(), epsilon)).True()
	})

	t.Run("pure cause inherits impact of its effect", func(t *testing.T) {
		n := g.Node(3)
		gt.Value(t, n.DI).Equal(types.ImpactValues{})
		gt.Value(t, n.TI).Equal(n.II)
		gt.Number(t, n.TotalRisk).Greater(0.0)
	})
}

func TestShare(t *testing.T) {
	gt.Value(t, engine.Share(10, 1, 0)).Equal(0.0)
	gt.Value(t, engine.Share(10, 1, 4)).Equal(2.5)
}

func TestConvergeImpact_DivergingCycleIsCapped(t *testing.T) {
	ones := types.ConditionalMatrix{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	newGraph := func(t *testing.T) (*engine.Graph, *model.Risk, *model.Risk) {
		a := newRisk(1, types.ScenarioValues{0.1, 0.1, 0.1})
		a.DirectImpact[types.ScenarioConsiderable][types.DamageFa] = 1e9
		b := newRisk(2, types.ScenarioValues{0.1, 0.1, 0.1})
		g := mustGraph(t, []*model.Risk{a, b}, []*model.Cascade{
			newCascade(1, 1, 2, ones),
			newCascade(2, 2, 1, ones),
		})
		return g, a, b
	}

	t.Run("short budget ends without convergence", func(t *testing.T) {
		g, _, _ := newGraph(t)
		result, err := engine.ConvergeImpact(g, &engine.Options{DampingFactor: 1, MaxRuns: 5})
		gt.NoError(t, err).Required()
		gt.Bool(t, result.Converged).False()
		gt.Value(t, result.Runs).Equal(5)
	})

	t.Run("long budget settles at the ceiling", func(t *testing.T) {
		g, a, b := newGraph(t)
		result, err := engine.Run(g, metaOf(a, b), nil, engine.DefaultScales(),
			&engine.Options{DampingFactor: 1, MaxRuns: 800})
		gt.NoError(t, err).Required()
		gt.Bool(t, math.IsInf(result.Impact.Total, 0)).False()

		for _, n := range g.Nodes {
			gt.Bool(t, n.TI.Finite()).True()
			for _, s := range types.AllScenarios() {
				for _, c := range types.AllDamageCategories() {
					gt.Number(t, n.II[s][c]).LessOrEqual(engine.ImpactCeiling)
				}
			}
		}
		for _, e := range g.Edges {
			gt.Value(t, e.II[types.ScenarioExtreme][types.DamageFa]).Equal(engine.ImpactCeiling)
		}
	})
}
