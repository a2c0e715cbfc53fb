package interfaces

import (
	"context"

	"github.com/secmon-lab/riskcascade/pkg/domain/model"
)

// Notifier announces a finished analysis run
type Notifier interface {
	NotifyRun(ctx context.Context, run *model.AnalysisRun) error
}

// Exporter writes a finished analysis run to an external artifact store
type Exporter interface {
	// Export returns the location of the written artifact
	Export(ctx context.Context, run *model.AnalysisRun) (string, error)
}
