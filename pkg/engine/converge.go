package engine

import (
	"log/slog"
	"math"

	"github.com/m-mizutani/goerr/v2"
)

const (
	// DefaultDampingFactor attenuates cascades flagged as damped
	DefaultDampingFactor = 0.5

	// DefaultMaxRuns is the iteration budget of one fixed-point phase
	DefaultMaxRuns = 10

	// DefaultTolerance is the relative change under which a phase is
	// considered stable
	DefaultTolerance = 0.001
)

// Criterion selects how stability is measured between two iterations
type Criterion string

const (
	// CriterionAggregate compares the sum over all nodes
	CriterionAggregate Criterion = "aggregate"

	// CriterionPerNode requires every node to be stable on its own, which
	// also catches a single oscillating node hidden in a stable sum
	CriterionPerNode Criterion = "per-node"
)

// IsValid checks if the criterion is known
func (c Criterion) IsValid() bool {
	return c == CriterionAggregate || c == CriterionPerNode
}

// ParseCriterion parses a string into a Criterion
func ParseCriterion(s string) (Criterion, error) {
	c := Criterion(s)
	if !c.IsValid() {
		return "", goerr.New("invalid convergence criterion", goerr.V("criterion", s))
	}
	return c, nil
}

// Options configures the fixed-point iteration
type Options struct {
	// DampingFactor is applied to cascades with Damp set. Must be in [0, 1].
	// Zero is a valid factor and cuts damped cascades entirely; start from
	// DefaultOptions to get the reference factor.
	DampingFactor float64

	// MaxRuns is the maximum number of iterations per phase. Must be > 0.
	MaxRuns int

	// Tolerance is the relative change threshold. Must be > 0.
	Tolerance float64

	Criterion Criterion

	// Logger receives progress and non-convergence reports. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns the settings used by the reference assessment
func DefaultOptions() *Options {
	return &Options{
		DampingFactor: DefaultDampingFactor,
		MaxRuns:       DefaultMaxRuns,
		Tolerance:     DefaultTolerance,
		Criterion:     CriterionAggregate,
	}
}

// Validate applies defaults for out-of-range values
func (o *Options) Validate() {
	if math.IsNaN(o.DampingFactor) || o.DampingFactor < 0 || o.DampingFactor > 1 {
		o.DampingFactor = DefaultDampingFactor
	}
	if o.MaxRuns <= 0 {
		o.MaxRuns = DefaultMaxRuns
	}
	if math.IsNaN(o.Tolerance) || o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if !o.Criterion.IsValid() {
		o.Criterion = CriterionAggregate
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// validated returns a defaulted copy of o, leaving the caller's value as is
func (o *Options) validated() *Options {
	if o == nil {
		return DefaultOptions().validated()
	}
	copied := *o
	copied.Validate()
	return &copied
}

// ConvergenceResult describes how a fixed-point phase ended
type ConvergenceResult struct {
	// Runs is the number of iterations performed
	Runs int

	// Converged is false when MaxRuns was exhausted. The graph still holds
	// the values of the last iteration.
	Converged bool

	// Delta is the relative change of the aggregate in the last iteration
	Delta float64

	// MaxNodeDelta is the largest relative change of a single node in the
	// last iteration
	MaxNodeDelta float64

	// Total is the aggregate after the last iteration
	Total float64
}

// phase is one fixed-point computation over the whole graph
type phase struct {
	name      string
	propagate func(g *Graph, i int) error
	aggregate func(g *Graph, i int) error
	value     func(n *Node) float64
}

// Converge repeatedly propagates and aggregates total probability over the
// whole graph until the sum of tp settles. Non-convergence is reported
// through the logger and is not an error.
func Converge(g *Graph, opts *Options) (*ConvergenceResult, error) {
	opts = opts.validated()

	return iterate(g, opts, phase{
		name: "probability",
		propagate: func(g *Graph, i int) error {
			return Propagate(g, i, opts.DampingFactor)
		},
		aggregate: Aggregate,
		value:     func(n *Node) float64 { return n.TotalProbability },
	})
}

func iterate(g *Graph, opts *Options, p phase) (*ConvergenceResult, error) {
	logger := opts.Logger.With("phase", p.name)

	prev := make([]float64, len(g.Nodes))
	result := &ConvergenceResult{}

	for run := 1; run <= opts.MaxRuns; run++ {
		var prevTotal float64
		for i := range g.Nodes {
			prev[i] = p.value(&g.Nodes[i])
			prevTotal += prev[i]
		}

		for i := range g.Nodes {
			if err := p.propagate(g, i); err != nil {
				return nil, goerr.Wrap(err, "propagation failed", goerr.V("run", run))
			}
		}
		for i := range g.Nodes {
			if err := p.aggregate(g, i); err != nil {
				return nil, goerr.Wrap(err, "aggregation failed", goerr.V("run", run))
			}
		}

		var total, maxNodeDelta float64
		for i := range g.Nodes {
			v := p.value(&g.Nodes[i])
			total += v
			maxNodeDelta = math.Max(maxNodeDelta, relativeChange(prev[i], v))
		}

		result.Runs = run
		result.Total = total
		result.Delta = relativeChange(prevTotal, total)
		result.MaxNodeDelta = maxNodeDelta

		logger.Debug("iteration finished",
			"run", run,
			"total", total,
			"delta", result.Delta,
			"max_node_delta", maxNodeDelta)

		stable := result.Delta < opts.Tolerance
		if opts.Criterion == CriterionPerNode {
			stable = maxNodeDelta < opts.Tolerance
		}
		if stable {
			result.Converged = true
			logger.Info("converged",
				"runs", run,
				"delta", result.Delta,
				"max_node_delta", maxNodeDelta)
			return result, nil
		}
	}

	logger.Warn("did not converge, using values of last iteration",
		"runs", result.Runs,
		"delta", result.Delta,
		"max_node_delta", result.MaxNodeDelta,
		"tolerance", opts.Tolerance)
	return result, nil
}

// relativeChange returns |now-prev|/now, 0 when both are zero
func relativeChange(prev, now float64) float64 {
	if now == 0 {
		if prev == 0 {
			return 0
		}
		return 1
	}
	return math.Abs(now-prev) / math.Abs(now)
}
