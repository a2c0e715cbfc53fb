package types

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// ScenarioValues holds one value per scenario, indexed by Scenario
type ScenarioValues [ScenarioCount]float64

// Get returns the value for the scenario
func (v ScenarioValues) Get(s Scenario) float64 {
	return v[s]
}

// Sum returns the sum over all scenarios
func (v ScenarioValues) Sum() float64 {
	return v[ScenarioConsiderable] + v[ScenarioMajor] + v[ScenarioExtreme]
}

// Average returns the mean over all scenarios
func (v ScenarioValues) Average() float64 {
	return v.Sum() / ScenarioCount
}

// Finite reports whether every value is a finite number
func (v ScenarioValues) Finite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// ImpactValues holds one value per scenario and damage category
type ImpactValues [ScenarioCount][DamageCategoryCount]float64

// Get returns the value for a scenario and category
func (v ImpactValues) Get(s Scenario, c DamageCategory) float64 {
	return v[s][c]
}

// Scenario returns the sum over all categories for one scenario
func (v ImpactValues) Scenario(s Scenario) float64 {
	var sum float64
	for _, x := range v[s] {
		sum += x
	}
	return sum
}

// Domain returns the sum of the categories belonging to a domain for one scenario
func (v ImpactValues) Domain(s Scenario, d Domain) float64 {
	var sum float64
	for _, c := range AllDamageCategories() {
		if c.Domain() == d {
			sum += v[s][c]
		}
	}
	return sum
}

// Totals returns the category sums per scenario
func (v ImpactValues) Totals() ScenarioValues {
	var t ScenarioValues
	for _, s := range AllScenarios() {
		t[s] = v.Scenario(s)
	}
	return t
}

// Finite reports whether every value is a finite number
func (v ImpactValues) Finite() bool {
	for _, row := range v {
		for _, x := range row {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}

// ConditionalMatrix holds the probability that a cause scenario (row)
// produces an effect scenario (column)
type ConditionalMatrix [ScenarioCount][ScenarioCount]float64

// At returns the conditional probability cause -> effect
func (m ConditionalMatrix) At(cause, effect Scenario) float64 {
	return m[cause][effect]
}

// Validate checks that every entry is a probability
func (m ConditionalMatrix) Validate() error {
	for _, cause := range AllScenarios() {
		for _, effect := range AllScenarios() {
			p := m[cause][effect]
			if math.IsNaN(p) || p < 0 || p > 1 {
				return goerr.New("conditional probability must be between 0 and 1",
					goerr.V("cause", cause.String()),
					goerr.V("effect", effect.String()),
					goerr.V("value", p))
			}
		}
	}
	return nil
}
