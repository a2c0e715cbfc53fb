package engine

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

// ImpactCeiling bounds indirect impact per scenario and damage category, the
// impact counterpart of ProbabilityCeiling
const ImpactCeiling = 1e15

// PropagateImpact recomputes the indirect impact of node i from the total
// impact of the risks it causes, per scenario and damage category.
//
//	ii_cat_S(edge) = Σ_S' M[S][S'] × effect.ti_cat_S' × damping(edge)
//
// Impact flows against the cascade direction: a cause inherits part of the
// damage of its effects.
func PropagateImpact(g *Graph, i int, dampingFactor float64) error {
	n := &g.Nodes[i]

	var ii types.ImpactValues
	for _, ei := range n.Effects {
		e := &g.Edges[ei]
		effect := &g.Nodes[e.Effect]
		f := e.damping(dampingFactor)

		for _, s := range types.AllScenarios() {
			for _, c := range types.AllDamageCategories() {
				var v float64
				for _, es := range types.AllScenarios() {
					v += e.Matrix[s][es] * effect.TI[es][c] * f
				}
				if math.IsNaN(v) {
					return goerr.Wrap(ErrNumericIntegrity, "indirect impact is NaN",
						goerr.V(RiskIDKey, n.ID),
						goerr.V(CascadeIDKey, e.ID),
						goerr.V(ScenarioKey, s.String()),
						goerr.V(CategoryKey, c.String()))
				}
				e.II[s][c] = math.Min(v, ImpactCeiling)
				ii[s][c] += e.II[s][c]
			}
		}
	}
	for _, s := range types.AllScenarios() {
		for _, c := range types.AllDamageCategories() {
			n.II[s][c] = math.Min(ii[s][c], ImpactCeiling)
		}
	}

	return nil
}

// AggregateImpact sets ti = di + ii for node i
func AggregateImpact(g *Graph, i int) error {
	n := &g.Nodes[i]

	for _, s := range types.AllScenarios() {
		for _, c := range types.AllDamageCategories() {
			n.TI[s][c] = n.DI[s][c] + n.II[s][c]
		}
	}

	if !n.TI.Finite() {
		return goerr.Wrap(ErrNumericIntegrity, "total impact is not a finite number",
			goerr.V(RiskIDKey, n.ID))
	}
	return nil
}

// totalImpact is the scenario average of the category sums
func (n *Node) totalImpact() float64 {
	return n.TI.Totals().Average()
}

// ConvergeImpact is the impact counterpart of Converge
func ConvergeImpact(g *Graph, opts *Options) (*ConvergenceResult, error) {
	opts = opts.validated()

	return iterate(g, opts, phase{
		name: "impact",
		propagate: func(g *Graph, i int) error {
			return PropagateImpact(g, i, opts.DampingFactor)
		},
		aggregate: AggregateImpact,
		value:     (*Node).totalImpact,
	})
}
