package usecase

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for use case layer
var (
	// ErrRunInProgress is returned when an analysis is requested while
	// another one is still being computed
	ErrRunInProgress = goerr.New("analysis run already in progress")

	ErrRunNotFound    = goerr.New("analysis run not found")
	ErrRiskNotInRun   = goerr.New("risk is not part of the analysis run")
	ErrNoRunsYet      = goerr.New("no analysis run has finished yet")
	ErrEmptyCatalogue = goerr.New("catalogue has no risks")

	// ErrInvalidCatalogue is returned when catalogue keys do not resolve
	ErrInvalidCatalogue = goerr.New("invalid catalogue")
)

// Context keys for error values
const (
	RunIDKey        = "run_id"
	RiskIDKey       = "risk_id"
	CascadeIDKey    = "cascade_id"
	CatalogueKeyKey = "catalogue_key"
)
