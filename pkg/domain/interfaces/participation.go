package interfaces

import (
	"context"

	"github.com/secmon-lab/riskcascade/pkg/domain/model"
)

type ParticipationRepository interface {
	// Create creates a new participation with auto-generated ID
	Create(ctx context.Context, p *model.Participation) (*model.Participation, error)

	// List retrieves all participations ordered by ID
	List(ctx context.Context) ([]*model.Participation, error)

	// ListByRisk retrieves the participations of one risk
	ListByRisk(ctx context.Context, riskID int64) ([]*model.Participation, error)

	// Delete deletes a participation by ID
	Delete(ctx context.Context, id int64) error
}
