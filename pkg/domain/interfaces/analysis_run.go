package interfaces

import (
	"context"

	"github.com/secmon-lab/riskcascade/pkg/domain/model"
)

// AnalysisRunRepository stores the immutable results of analysis runs
type AnalysisRunRepository interface {
	// Save stores a completed run. Saving an existing ID replaces it.
	Save(ctx context.Context, run *model.AnalysisRun) error

	// Get retrieves a run by ID
	Get(ctx context.Context, id model.AnalysisRunID) (*model.AnalysisRun, error)

	// List retrieves up to limit runs, newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*model.AnalysisRun, error)

	// Latest retrieves the most recently finished run
	Latest(ctx context.Context) (*model.AnalysisRun, error)
}
