package interfaces

import (
	"context"

	"github.com/secmon-lab/riskcascade/pkg/domain/model"
)

// CascadeRepository stores the directed cause → effect relations between risks.
// Referential integrity against RiskRepository is not enforced here; the
// analysis rejects dangling cascades when it builds the graph.
type CascadeRepository interface {
	// Create creates a new cascade with auto-generated ID
	Create(ctx context.Context, cascade *model.Cascade) (*model.Cascade, error)

	// Get retrieves a cascade by ID
	Get(ctx context.Context, id int64) (*model.Cascade, error)

	// List retrieves all cascades ordered by ID
	List(ctx context.Context) ([]*model.Cascade, error)

	// Delete deletes a cascade by ID
	Delete(ctx context.Context, id int64) error
}
