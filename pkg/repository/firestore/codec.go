package firestore

import (
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

// Firestore cannot store nested arrays, so per-scenario rows are kept in a
// map keyed by the scenario name.

func scenarioToSlice(v types.ScenarioValues) []float64 {
	return v[:]
}

func scenarioFromSlice(s []float64) types.ScenarioValues {
	var v types.ScenarioValues
	copy(v[:], s)
	return v
}

func impactToMap(v types.ImpactValues) map[string][]float64 {
	m := make(map[string][]float64, types.ScenarioCount)
	for _, s := range types.AllScenarios() {
		row := make([]float64, types.DamageCategoryCount)
		copy(row, v[s][:])
		m[s.String()] = row
	}
	return m
}

func impactFromMap(m map[string][]float64) types.ImpactValues {
	var v types.ImpactValues
	for _, s := range types.AllScenarios() {
		copy(v[s][:], m[s.String()])
	}
	return v
}

func matrixToMap(mx types.ConditionalMatrix) map[string][]float64 {
	m := make(map[string][]float64, types.ScenarioCount)
	for _, s := range types.AllScenarios() {
		row := make([]float64, types.ScenarioCount)
		copy(row, mx[s][:])
		m[s.String()] = row
	}
	return m
}

func matrixFromMap(m map[string][]float64) types.ConditionalMatrix {
	var mx types.ConditionalMatrix
	for _, s := range types.AllScenarios() {
		copy(mx[s][:], m[s.String()])
	}
	return mx
}
