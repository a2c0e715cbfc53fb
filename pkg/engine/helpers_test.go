package engine_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
	"github.com/secmon-lab/riskcascade/pkg/engine"
)

const epsilon = 1e-9

func newRisk(id int64, dp types.ScenarioValues) *model.Risk {
	return &model.Risk{
		ID:                    id,
		Title:                 "risk",
		Quality:               types.QualityAverage,
		Reliability:           0.8,
		SubjectiveImportance:  2,
		DirectProbability:     dp,
		DirectProbability2050: dp,
	}
}

func newCascade(id, cause, effect int64, m types.ConditionalMatrix) *model.Cascade {
	return &model.Cascade{
		ID:       id,
		CauseID:  cause,
		EffectID: effect,
		Quality:  types.QualityAverage,
		Matrix:   m,
	}
}

func mustGraph(t *testing.T, risks []*model.Risk, cascades []*model.Cascade) *engine.Graph {
	t.Helper()
	g, err := engine.NewGraph(risks, cascades)
	gt.NoError(t, err).Required()
	return g
}

func index(t *testing.T, g *engine.Graph, id int64) int {
	t.Helper()
	i, ok := g.Index(id)
	gt.Bool(t, ok).True()
	return i
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func metaOf(risks ...*model.Risk) map[int64]*model.Risk {
	m := make(map[int64]*model.Risk, len(risks))
	for _, r := range risks {
		m[r.ID] = r
	}
	return m
}
