package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

// AnalysisRunID is a UUID-based identifier for an analysis run
type AnalysisRunID string

// NewAnalysisRunID generates a new UUID v4 AnalysisRunID
func NewAnalysisRunID() AnalysisRunID {
	return AnalysisRunID(uuid.New().String())
}

// String returns the string representation of AnalysisRunID
func (id AnalysisRunID) String() string {
	return string(id)
}

// AnalysisParameters are the engine settings a run was computed with
type AnalysisParameters struct {
	DampingFactor float64 `json:"damping_factor"`
	MaxRuns       int     `json:"max_runs"`
	Tolerance     float64 `json:"tolerance"`
	Criterion     string  `json:"criterion"`
}

// ConvergenceSummary describes how a fixed-point phase ended
type ConvergenceSummary struct {
	Runs         int     `json:"runs"`
	Converged    bool    `json:"converged"`
	Delta        float64 `json:"delta"`
	MaxNodeDelta float64 `json:"max_node_delta"`
	Total        float64 `json:"total"`
}

// AnalysisRun is the artifact produced by one full recomputation of the
// cascade graph. Reporting and export consume it as-is.
type AnalysisRun struct {
	ID          AnalysisRunID         `json:"id"`
	Parameters  AnalysisParameters    `json:"parameters"`
	Probability ConvergenceSummary    `json:"probability"`
	Impact      ConvergenceSummary    `json:"impact"`
	Risks       []*RiskCalculation    `json:"risks"`
	Cascades    []*CascadeCalculation `json:"cascades"`
	StartedAt   time.Time             `json:"started_at"`
	FinishedAt  time.Time             `json:"finished_at"`
}

// Converged reports whether both fixed-point phases converged
func (r *AnalysisRun) Converged() bool {
	return r.Probability.Converged && r.Impact.Converged
}

// Risk returns the calculation for a risk, or nil if the run does not contain it
func (r *AnalysisRun) Risk(riskID int64) *RiskCalculation {
	for _, calc := range r.Risks {
		if calc.RiskID == riskID {
			return calc
		}
	}
	return nil
}

// RiskCalculation holds the engine-computed values of one risk
type RiskCalculation struct {
	RiskID int64  `json:"risk_id"`
	Title  string `json:"title"`

	DP   types.ScenarioValues `json:"dp"`
	DP50 types.ScenarioValues `json:"dp50"`
	IP   types.ScenarioValues `json:"ip"`
	IP50 types.ScenarioValues `json:"ip50"`
	TP   types.ScenarioValues `json:"tp"`
	TP50 types.ScenarioValues `json:"tp50"`
	RP   types.ScenarioValues `json:"rp"`

	DI types.ImpactValues `json:"di"`
	II types.ImpactValues `json:"ii"`
	TI types.ImpactValues `json:"ti"`

	TR types.ScenarioValues `json:"tr"`

	// Scalar aggregates
	DirectProbability float64 `json:"direct_probability"`
	TotalProbability  float64 `json:"total_probability"`
	TotalRisk         float64 `json:"total_risk"`

	Metrics RiskMetrics `json:"metrics"`
}

// CascadeCalculation holds the engine-computed values of one cascade
type CascadeCalculation struct {
	CascadeID int64 `json:"cascade_id"`
	CauseID   int64 `json:"cause_id"`
	EffectID  int64 `json:"effect_id"`

	IP   types.ScenarioValues `json:"ip"`
	IP50 types.ScenarioValues `json:"ip50"`
	II   types.ImpactValues   `json:"ii"`

	// IRCause is the share of the effect's risk explained by this cascade
	IRCause types.ScenarioValues `json:"ir_cause"`
	// IREffect is the share of the cause's risk explained by this cascade
	IREffect types.ScenarioValues `json:"ir_effect"`
}

// RiskMetrics are the secondary metrics derived from a converged graph
type RiskMetrics struct {
	Importance  ImportanceMetrics  `json:"importance"`
	Reliability ReliabilityMetrics `json:"reliability"`
	Divergence  float64            `json:"divergence"`
}

// ImportanceMetrics breaks down how important a risk is
type ImportanceMetrics struct {
	Subjective float64 `json:"subjective"`
	Cause      float64 `json:"cause"`
	Effect     float64 `json:"effect"`
	Total      float64 `json:"total"`
}

// ReliabilityMetrics breaks down how reliable the assessment of a risk is
type ReliabilityMetrics struct {
	Own     float64 `json:"own"`
	Causes  float64 `json:"causes"`
	Effects float64 `json:"effects"`
	Total   float64 `json:"total"`
}

// Copy returns a deep copy of the run
func (r *AnalysisRun) Copy() *AnalysisRun {
	if r == nil {
		return nil
	}
	copied := *r
	copied.Risks = make([]*RiskCalculation, len(r.Risks))
	for i, calc := range r.Risks {
		c := *calc
		copied.Risks[i] = &c
	}
	copied.Cascades = make([]*CascadeCalculation, len(r.Cascades))
	for i, calc := range r.Cascades {
		c := *calc
		copied.Cascades[i] = &c
	}
	return &copied
}
