package engine

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for the cascade engine
var (
	// ErrNumericIntegrity is raised when a probability or impact value is NaN
	// or otherwise unusable. It aborts the run; no partial result is trusted.
	ErrNumericIntegrity = goerr.New("numeric integrity violation")

	// ErrMissingEntity is raised when a risk or cascade referenced by the
	// graph is absent from the supplied data
	ErrMissingEntity = goerr.New("referenced entity is missing")

	// ErrInvalidGraph is raised when catalogue records cannot form a graph
	ErrInvalidGraph = goerr.New("invalid risk graph")

	// ErrConcurrentRun is raised when a run is started on a graph that is
	// already being computed
	ErrConcurrentRun = goerr.New("graph is already being computed")
)

// Context keys for error values
const (
	RiskIDKey    = "risk_id"
	CascadeIDKey = "cascade_id"
	ScenarioKey  = "scenario"
	CategoryKey  = "category"
	FieldKey     = "field"
	ValueKey     = "value"
)
