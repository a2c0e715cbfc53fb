package engine

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

// Valuate combines converged probability and impact into total risk and
// attributes it to the cascades.
//
// On the effect side, node risk is split across its causes by their share of
// indirect probability. On the cause side, node risk is split across its
// effects by their share of total impact.
func Valuate(g *Graph) error {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		ti := n.TI.Totals()
		for _, s := range types.AllScenarios() {
			n.TR[s] = n.TP[s] * ti[s]
		}
		n.TotalRisk = n.TR.Average()

		if math.IsNaN(n.TotalRisk) {
			return goerr.Wrap(ErrNumericIntegrity, "total risk is NaN", goerr.V(RiskIDKey, n.ID))
		}
	}

	for i := range g.Edges {
		e := &g.Edges[i]
		effect := &g.Nodes[e.Effect]
		cause := &g.Nodes[e.Cause]
		causeTI := cause.TI.Totals()

		for _, s := range types.AllScenarios() {
			e.IRCause[s] = share(effect.TR[s], e.IP[s], effect.TP[s])
			e.IREffect[s] = share(cause.TR[s], e.II.Scenario(s), causeTI[s])
		}
		e.IRCauseTotal = e.IRCause.Average()
		e.IREffectTotal = e.IREffect.Average()
	}

	return nil
}

// share returns total × part/whole, 0 for an empty whole
func share(total, part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return total * part / whole
}
