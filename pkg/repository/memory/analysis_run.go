package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
)

type analysisRunRepository struct {
	mu   sync.RWMutex
	runs map[model.AnalysisRunID]*model.AnalysisRun
}

func newAnalysisRunRepository() *analysisRunRepository {
	return &analysisRunRepository{
		runs: make(map[model.AnalysisRunID]*model.AnalysisRun),
	}
}

func (r *analysisRunRepository) Save(ctx context.Context, run *model.AnalysisRun) error {
	if run.ID == "" {
		return goerr.New("analysis run ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = run.Copy()
	return nil
}

func (r *analysisRunRepository) Get(ctx context.Context, id model.AnalysisRunID) (*model.AnalysisRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, exists := r.runs[id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "analysis run not found", goerr.V("id", id))
	}
	return run.Copy(), nil
}

func (r *analysisRunRepository) List(ctx context.Context, limit int) ([]*model.AnalysisRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*model.AnalysisRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].FinishedAt.After(runs[j].FinishedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	result := make([]*model.AnalysisRun, len(runs))
	for i, run := range runs {
		result[i] = run.Copy()
	}
	return result, nil
}

func (r *analysisRunRepository) Latest(ctx context.Context) (*model.AnalysisRun, error) {
	runs, err := r.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "no analysis run")
	}
	return runs[0], nil
}
