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

type cascadeRepository struct {
	mu       sync.RWMutex
	cascades map[int64]*model.Cascade
	nextID   int64
}

func newCascadeRepository() *cascadeRepository {
	return &cascadeRepository{
		cascades: make(map[int64]*model.Cascade),
		nextID:   1,
	}
}

func (r *cascadeRepository) Create(ctx context.Context, cascade *model.Cascade) (*model.Cascade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	created := cascade.Copy()
	created.ID = r.nextID
	created.CreatedAt = now
	created.UpdatedAt = now
	r.nextID++

	r.cascades[created.ID] = created
	return created.Copy(), nil
}

func (r *cascadeRepository) Get(ctx context.Context, id int64) (*model.Cascade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cascade, exists := r.cascades[id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "cascade not found", goerr.V("id", id))
	}
	return cascade.Copy(), nil
}

func (r *cascadeRepository) List(ctx context.Context) ([]*model.Cascade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cascades := make([]*model.Cascade, 0, len(r.cascades))
	for _, c := range r.cascades {
		cascades = append(cascades, c.Copy())
	}
	sort.Slice(cascades, func(i, j int) bool { return cascades[i].ID < cascades[j].ID })

	return cascades, nil
}

func (r *cascadeRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cascades[id]; !exists {
		return goerr.Wrap(interfaces.ErrNotFound, "cascade not found", goerr.V("id", id))
	}

	delete(r.cascades, id)
	return nil
}
