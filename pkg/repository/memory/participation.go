package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
)

type participationRepository struct {
	mu             sync.RWMutex
	participations map[int64]*model.Participation
	nextID         int64
}

func newParticipationRepository() *participationRepository {
	return &participationRepository{
		participations: make(map[int64]*model.Participation),
		nextID:         1,
	}
}

func (r *participationRepository) Create(ctx context.Context, p *model.Participation) (*model.Participation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := p.Copy()
	created.ID = r.nextID
	created.CreatedAt = time.Now().UTC()
	r.nextID++

	r.participations[created.ID] = created
	return created.Copy(), nil
}

func (r *participationRepository) List(ctx context.Context) ([]*model.Participation, error) {
	return r.filter(func(*model.Participation) bool { return true }), nil
}

func (r *participationRepository) ListByRisk(ctx context.Context, riskID int64) ([]*model.Participation, error) {
	return r.filter(func(p *model.Participation) bool { return p.RiskID == riskID }), nil
}

func (r *participationRepository) filter(match func(*model.Participation) bool) []*model.Participation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Participation, 0)
	for _, p := range r.participations {
		if match(p) {
			result = append(result, p.Copy())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *participationRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.participations[id]; !exists {
		return goerr.Wrap(interfaces.ErrNotFound, "participation not found", goerr.V("id", id))
	}

	delete(r.participations, id)
	return nil
}
