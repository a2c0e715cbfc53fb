package types

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Scenario represents the intensity level a risk is assessed for
type Scenario int

const (
	ScenarioConsiderable Scenario = iota
	ScenarioMajor
	ScenarioExtreme
)

// ScenarioCount is the number of intensity scenarios tracked per value
const ScenarioCount = 3

// AllScenarios returns all scenarios ordered by increasing intensity
func AllScenarios() []Scenario {
	return []Scenario{
		ScenarioConsiderable,
		ScenarioMajor,
		ScenarioExtreme,
	}
}

// IsValid checks if the scenario is one of the known intensity levels
func (s Scenario) IsValid() bool {
	return s >= ScenarioConsiderable && s <= ScenarioExtreme
}

// String returns the lowercase name of the scenario
func (s Scenario) String() string {
	switch s {
	case ScenarioConsiderable:
		return "considerable"
	case ScenarioMajor:
		return "major"
	case ScenarioExtreme:
		return "extreme"
	default:
		return "unknown"
	}
}

// Code returns the single letter abbreviation used in field names (c, m, e)
func (s Scenario) Code() string {
	switch s {
	case ScenarioConsiderable:
		return "c"
	case ScenarioMajor:
		return "m"
	case ScenarioExtreme:
		return "e"
	default:
		return "?"
	}
}

// ParseScenario parses either the full name or the single letter code
func ParseScenario(s string) (Scenario, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "considerable", "c":
		return ScenarioConsiderable, nil
	case "major", "m":
		return ScenarioMajor, nil
	case "extreme", "e":
		return ScenarioExtreme, nil
	default:
		return 0, goerr.New("invalid scenario", goerr.V("scenario", s))
	}
}
