package memory

import (
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory keeps the catalogue and the analysis runs in process memory.
// Intended for development and tests.
type Memory struct {
	risk          *riskRepository
	cascade       *cascadeRepository
	participation *participationRepository
	analysisRun   *analysisRunRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		risk:          newRiskRepository(),
		cascade:       newCascadeRepository(),
		participation: newParticipationRepository(),
		analysisRun:   newAnalysisRunRepository(),
	}
}

func (m *Memory) Risk() interfaces.RiskRepository {
	return m.risk
}

func (m *Memory) Cascade() interfaces.CascadeRepository {
	return m.cascade
}

func (m *Memory) Participation() interfaces.ParticipationRepository {
	return m.participation
}

func (m *Memory) AnalysisRun() interfaces.AnalysisRunRepository {
	return m.analysisRun
}

func (m *Memory) Close() error {
	return nil
}
