package engine

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

// ComputeMetrics derives importance and reliability of every risk from a
// converged and valuated graph. meta must hold the catalogue record of every
// node; participations are used to weigh the reliability of neighbours.
func ComputeMetrics(g *Graph, meta map[int64]*model.Risk, participations []*model.Participation, scales Scales) error {
	completed := make(map[int64]int)
	for _, p := range participations {
		if p.CascadeAnalysisComplete {
			completed[p.RiskID]++
		}
	}

	lookup := func(id int64) (*model.Risk, error) {
		r, ok := meta[id]
		if !ok || r == nil {
			return nil, goerr.Wrap(ErrMissingEntity, "risk missing from metadata", goerr.V(RiskIDKey, id))
		}
		return r, nil
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		risk, err := lookup(n.ID)
		if err != nil {
			return err
		}

		var causeX, effectX float64
		for _, ei := range n.Effects {
			causeX += scales.Impact.Number(g.Edges[ei].II.Totals().Average())
		}
		for _, ei := range n.Causes {
			effectX += scales.Probability.Number(g.Edges[ei].IndirectProbability)
		}

		imp := model.ImportanceMetrics{
			Subjective: risk.SubjectiveImportance,
			Cause:      saturate(causeX),
			Effect:     saturate(effectX),
		}
		imp.Total = (imp.Subjective +
			scales.Impact.Number(n.totalImpact())*2/5 +
			imp.Cause/3 +
			imp.Effect/3) / 7

		rel := model.ReliabilityMetrics{
			Own:     risk.Reliability,
			Causes:  1,
			Effects: 1,
		}
		if risk.Quality != types.QualityConsensus {
			rel.Causes, err = neighbourReliability(g, n.Causes, func(e *Edge) int { return e.Cause }, lookup, completed)
			if err != nil {
				return err
			}
			rel.Effects, err = neighbourReliability(g, n.Effects, func(e *Edge) int { return e.Effect }, lookup, completed)
			if err != nil {
				return err
			}
		}
		rel.Total = (rel.Own + 0.5*rel.Causes + 0.5*rel.Effects) / 2

		n.Metrics = model.RiskMetrics{
			Importance:  imp,
			Reliability: rel,
		}
	}

	return nil
}

// saturate maps [0, inf) onto [0, 3)
func saturate(x float64) float64 {
	return 3 * x / (3 + x)
}

// neighbourReliability averages neighbour.reliability × n/(0.5+n) over the
// given edges, n being the neighbour's completed cascade analyses
func neighbourReliability(g *Graph, edges []int, other func(e *Edge) int, lookup func(int64) (*model.Risk, error), completed map[int64]int) (float64, error) {
	if len(edges) == 0 {
		return 1, nil
	}

	var sum float64
	for _, ei := range edges {
		neighbour := &g.Nodes[other(&g.Edges[ei])]
		r, err := lookup(neighbour.ID)
		if err != nil {
			return 0, goerr.Wrap(err, "cascade neighbour missing", goerr.V(CascadeIDKey, g.Edges[ei].ID))
		}
		k := float64(completed[neighbour.ID])
		sum += r.Reliability * k / (0.5 + k)
	}
	return sum / float64(len(edges)), nil
}
