// Package engine propagates probability and impact over a possibly cyclic
// graph of risks connected by cascades, then derives total risk, its
// attribution to cascades, and importance/reliability metrics.
//
// The engine is synchronous and holds no I/O. Every run recomputes the whole
// graph from its base values.
package engine

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
)

// Result summarises one engine run. The computed values live in the graph.
type Result struct {
	Probability *ConvergenceResult
	Impact      *ConvergenceResult
}

// Run performs a full analysis on g: reset, probability fixed point, impact
// fixed point, valuation and metrics. A second Run on the same graph while
// one is in progress fails with ErrConcurrentRun.
func Run(g *Graph, meta map[int64]*model.Risk, participations []*model.Participation, scales Scales, opts *Options) (*Result, error) {
	if !g.mu.TryLock() {
		return nil, goerr.Wrap(ErrConcurrentRun, "analysis already running on graph")
	}
	defer g.mu.Unlock()

	opts = opts.validated()

	g.Reset()

	prob, err := Converge(g, opts)
	if err != nil {
		return nil, goerr.Wrap(err, "probability propagation failed")
	}

	impact, err := ConvergeImpact(g, opts)
	if err != nil {
		return nil, goerr.Wrap(err, "impact propagation failed")
	}

	if err := Valuate(g); err != nil {
		return nil, goerr.Wrap(err, "risk valuation failed")
	}

	if err := ComputeMetrics(g, meta, participations, scales); err != nil {
		return nil, goerr.Wrap(err, "metrics computation failed")
	}

	return &Result{
		Probability: prob,
		Impact:      impact,
	}, nil
}
