package interfaces

import "github.com/m-mizutani/goerr/v2"

// ErrNotFound is returned by every repository when the requested entity does not exist
var ErrNotFound = goerr.New("not found")

// Repository defines the interface for data persistence
type Repository interface {
	Risk() RiskRepository
	Cascade() CascadeRepository
	Participation() ParticipationRepository
	AnalysisRun() AnalysisRunRepository

	// Close releases the underlying connections
	Close() error
}
