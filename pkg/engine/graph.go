package engine

import (
	"math"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

// Node is a risk in the graph arena. Base fields are copied from the
// catalogue; computed fields are owned by the engine and rebuilt on every run.
type Node struct {
	ID                   int64
	Title                string
	Quality              types.Quality
	Reliability          float64
	SubjectiveImportance float64

	DP   types.ScenarioValues
	DP50 types.ScenarioValues
	DI   types.ImpactValues

	// Causes and Effects are indices into Graph.Edges
	Causes  []int
	Effects []int

	IP   types.ScenarioValues
	IP50 types.ScenarioValues
	TP   types.ScenarioValues
	TP50 types.ScenarioValues
	RP   types.ScenarioValues
	II   types.ImpactValues
	TI   types.ImpactValues
	TR   types.ScenarioValues

	DirectProbability   float64
	IndirectProbability float64
	TotalProbability    float64
	TotalRisk           float64

	Metrics model.RiskMetrics
}

// Edge is a cascade in the graph arena. Cause and Effect are indices into
// Graph.Nodes.
type Edge struct {
	ID      int64
	Cause   int
	Effect  int
	Quality types.Quality
	Damp    bool
	Matrix  types.ConditionalMatrix

	IP                  types.ScenarioValues
	IP50                types.ScenarioValues
	IndirectProbability float64
	II                  types.ImpactValues
	IRCause             types.ScenarioValues
	IREffect            types.ScenarioValues
	IRCauseTotal        float64
	IREffectTotal       float64
}

// Graph holds every risk and cascade of one analysis run
type Graph struct {
	Nodes []Node
	Edges []Edge

	index map[int64]int
	mu    sync.Mutex
}

// NewGraph builds the arena from catalogue records. Cycles and self loops
// are allowed.
func NewGraph(risks []*model.Risk, cascades []*model.Cascade) (*Graph, error) {
	g := &Graph{
		Nodes: make([]Node, 0, len(risks)),
		Edges: make([]Edge, 0, len(cascades)),
		index: make(map[int64]int, len(risks)),
	}

	for _, r := range risks {
		if _, dup := g.index[r.ID]; dup {
			return nil, goerr.Wrap(ErrInvalidGraph, "duplicate risk", goerr.V(RiskIDKey, r.ID))
		}
		if err := checkBaseValues(r); err != nil {
			return nil, err
		}

		g.index[r.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, Node{
			ID:                   r.ID,
			Title:                r.Title,
			Quality:              r.Quality,
			Reliability:          r.Reliability,
			SubjectiveImportance: r.SubjectiveImportance,
			DP:                   r.DirectProbability,
			DP50:                 r.DirectProbability2050,
			DI:                   r.DirectImpact,
		})
	}

	for _, c := range cascades {
		cause, ok := g.index[c.CauseID]
		if !ok {
			return nil, goerr.Wrap(ErrMissingEntity, "cascade cause not found",
				goerr.V(CascadeIDKey, c.ID), goerr.V(RiskIDKey, c.CauseID))
		}
		effect, ok := g.index[c.EffectID]
		if !ok {
			return nil, goerr.Wrap(ErrMissingEntity, "cascade effect not found",
				goerr.V(CascadeIDKey, c.ID), goerr.V(RiskIDKey, c.EffectID))
		}
		if err := c.Matrix.Validate(); err != nil {
			return nil, goerr.Wrap(ErrInvalidGraph, "invalid conditional probability matrix",
				goerr.V(CascadeIDKey, c.ID), goerr.V("reason", err.Error()))
		}

		ei := len(g.Edges)
		g.Edges = append(g.Edges, Edge{
			ID:      c.ID,
			Cause:   cause,
			Effect:  effect,
			Quality: c.Quality,
			Damp:    c.Damp,
			Matrix:  c.Matrix,
		})
		g.Nodes[cause].Effects = append(g.Nodes[cause].Effects, ei)
		g.Nodes[effect].Causes = append(g.Nodes[effect].Causes, ei)
	}

	g.Reset()
	return g, nil
}

func checkBaseValues(r *model.Risk) error {
	check := func(field string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return goerr.Wrap(ErrNumericIntegrity, "base value must be finite and non-negative",
				goerr.V(RiskIDKey, r.ID), goerr.V(FieldKey, field), goerr.V(ValueKey, v))
		}
		return nil
	}

	for _, s := range types.AllScenarios() {
		if err := check("dp_"+s.Code(), r.DirectProbability[s]); err != nil {
			return err
		}
		if err := check("dp50_"+s.Code(), r.DirectProbability2050[s]); err != nil {
			return err
		}
		for _, c := range types.AllDamageCategories() {
			if err := check("di_"+c.String()+"_"+s.Code(), r.DirectImpact[s][c]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the number of risks in the graph
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// Index returns the arena position of a risk
func (g *Graph) Index(id int64) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Node returns the node for a risk ID, or nil if absent
func (g *Graph) Node(id int64) *Node {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return &g.Nodes[i]
}

// Reset discards every computed value. Total values start at the direct
// values so that tp == dp + ip holds before the first pass.
func (g *Graph) Reset() {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		n.IP = types.ScenarioValues{}
		n.IP50 = types.ScenarioValues{}
		n.TP = n.DP
		n.TP50 = n.DP50
		n.RP = types.ScenarioValues{}
		n.II = types.ImpactValues{}
		n.TI = n.DI
		n.TR = types.ScenarioValues{}
		n.DirectProbability = n.DP.Sum()
		n.IndirectProbability = 0
		n.TotalProbability = n.TP.Sum()
		n.TotalRisk = 0
		n.Metrics = model.RiskMetrics{}
	}

	for i := range g.Edges {
		e := &g.Edges[i]
		e.IP = types.ScenarioValues{}
		e.IP50 = types.ScenarioValues{}
		e.IndirectProbability = 0
		e.II = types.ImpactValues{}
		e.IRCause = types.ScenarioValues{}
		e.IREffect = types.ScenarioValues{}
		e.IRCauseTotal = 0
		e.IREffectTotal = 0
	}
}

// RiskCalculations exports the computed values of every node
func (g *Graph) RiskCalculations() []*model.RiskCalculation {
	calcs := make([]*model.RiskCalculation, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		calcs[i] = &model.RiskCalculation{
			RiskID:            n.ID,
			Title:             n.Title,
			DP:                n.DP,
			DP50:              n.DP50,
			IP:                n.IP,
			IP50:              n.IP50,
			TP:                n.TP,
			TP50:              n.TP50,
			RP:                n.RP,
			DI:                n.DI,
			II:                n.II,
			TI:                n.TI,
			TR:                n.TR,
			DirectProbability: n.DirectProbability,
			TotalProbability:  n.TotalProbability,
			TotalRisk:         n.TotalRisk,
			Metrics:           n.Metrics,
		}
	}
	return calcs
}

// CascadeCalculations exports the computed values of every edge
func (g *Graph) CascadeCalculations() []*model.CascadeCalculation {
	calcs := make([]*model.CascadeCalculation, len(g.Edges))
	for i := range g.Edges {
		e := &g.Edges[i]
		calcs[i] = &model.CascadeCalculation{
			CascadeID: e.ID,
			CauseID:   g.Nodes[e.Cause].ID,
			EffectID:  g.Nodes[e.Effect].ID,
			IP:        e.IP,
			IP50:      e.IP50,
			II:        e.II,
			IRCause:   e.IRCause,
			IREffect:  e.IREffect,
		}
	}
	return calcs
}
