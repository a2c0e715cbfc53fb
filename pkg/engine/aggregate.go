package engine

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

// Aggregate combines direct and indirect probability of node i into totals
// and relative scenario shares. It does not look at any edge.
func Aggregate(g *Graph, i int) error {
	n := &g.Nodes[i]

	for _, s := range types.AllScenarios() {
		n.TP[s] = n.DP[s] + n.IP[s]
		n.TP50[s] = n.DP50[s] + n.IP50[s]
	}
	n.DirectProbability = n.DP.Sum()
	n.TotalProbability = n.TP.Sum()

	if math.IsNaN(n.TotalProbability) || math.IsInf(n.TotalProbability, 0) || !n.TP50.Finite() {
		return goerr.Wrap(ErrNumericIntegrity, "total probability is not a finite number",
			goerr.V(RiskIDKey, n.ID),
			goerr.V(ValueKey, n.TotalProbability))
	}

	for _, s := range types.AllScenarios() {
		if n.TotalProbability > 0 {
			n.RP[s] = n.TP[s] / n.TotalProbability
		} else {
			n.RP[s] = 0
		}
	}

	return nil
}
