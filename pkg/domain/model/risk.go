package model

import (
	"time"

	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

// Risk is a catalogue entry describing a hazard and its direct assessment
type Risk struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Quality     types.Quality `json:"quality"`

	// Reliability of the author's assessment, in [0, 1]
	Reliability float64 `json:"reliability"`
	// SubjectiveImportance as judged by the analysts, on the 0..5 scale
	SubjectiveImportance float64 `json:"subjective_importance"`

	DirectProbability     types.ScenarioValues `json:"direct_probability"`
	DirectProbability2050 types.ScenarioValues `json:"direct_probability_2050"`
	DirectImpact          types.ImpactValues   `json:"direct_impact"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Copy returns a deep copy of the risk
func (r *Risk) Copy() *Risk {
	if r == nil {
		return nil
	}
	copied := *r
	return &copied
}

// Cascade is a directed causal relationship between two risks
type Cascade struct {
	ID       int64         `json:"id"`
	CauseID  int64         `json:"cause_id"`
	EffectID int64         `json:"effect_id"`
	Quality  types.Quality `json:"quality"`

	// Damp marks low-confidence or climate-linked cascades that are
	// attenuated during propagation
	Damp bool `json:"damp"`

	// Matrix[cause][effect] is the probability that the cause scenario
	// produces the effect scenario
	Matrix types.ConditionalMatrix `json:"matrix"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Copy returns a deep copy of the cascade
func (c *Cascade) Copy() *Cascade {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}

// Participation records an expert taking part in the analysis of a risk
type Participation struct {
	ID      int64  `json:"id"`
	RiskID  int64  `json:"risk_id"`
	Contact string `json:"contact"`
	Role    string `json:"role"`

	DirectAnalysisComplete  bool `json:"direct_analysis_complete"`
	CascadeAnalysisComplete bool `json:"cascade_analysis_complete"`

	CreatedAt time.Time `json:"created_at"`
}

// Copy returns a copy of the participation
func (p *Participation) Copy() *Participation {
	if p == nil {
		return nil
	}
	copied := *p
	return &copied
}
