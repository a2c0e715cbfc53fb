package engine

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

// ProbabilityCeiling bounds indirect probability so that feedback loops
// cannot blow up before the iteration settles
const ProbabilityCeiling = 1e8

func (e *Edge) damping(factor float64) float64 {
	if e.Damp {
		return factor
	}
	return 1
}

// Propagate recomputes the indirect probability of node i from the current
// total probability of its causes. Node and incoming edge values are
// overwritten in place.
//
//	ip_S = Σ_edges Σ_S' M[S'][S] × cause.tp_S' × damping(edge)
//
// The 2050 projection uses the same cascade coefficients against tp50.
func Propagate(g *Graph, i int, dampingFactor float64) error {
	n := &g.Nodes[i]

	var ip, ip50 types.ScenarioValues
	for _, ei := range n.Causes {
		e := &g.Edges[ei]
		cause := &g.Nodes[e.Cause]
		f := e.damping(dampingFactor)

		for _, s := range types.AllScenarios() {
			var v, v50 float64
			for _, cs := range types.AllScenarios() {
				v += e.Matrix[cs][s] * cause.TP[cs] * f
				v50 += e.Matrix[cs][s] * cause.TP50[cs] * f
			}
			if math.IsNaN(v) || math.IsNaN(v50) {
				return goerr.Wrap(ErrNumericIntegrity, "indirect probability is NaN",
					goerr.V(RiskIDKey, n.ID),
					goerr.V(CascadeIDKey, e.ID),
					goerr.V(ScenarioKey, s.String()))
			}

			e.IP[s] = math.Min(v, ProbabilityCeiling)
			e.IP50[s] = math.Min(v50, ProbabilityCeiling)
			ip[s] += e.IP[s]
			ip50[s] += e.IP50[s]
		}
		e.IndirectProbability = e.IP.Sum()
	}

	for _, s := range types.AllScenarios() {
		n.IP[s] = math.Min(ip[s], ProbabilityCeiling)
		n.IP50[s] = math.Min(ip50[s], ProbabilityCeiling)
	}
	n.IndirectProbability = n.IP.Sum()

	return nil
}
