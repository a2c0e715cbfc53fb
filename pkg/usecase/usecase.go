package usecase

import (
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/engine"
)

type UseCases struct {
	repo     interfaces.Repository
	options  *engine.Options
	scales   engine.Scales
	notifier interfaces.Notifier
	exporter interfaces.Exporter

	Analysis  *AnalysisUseCase
	Catalogue *CatalogueUseCase
}

type Option func(*UseCases)

// WithEngineOptions sets the convergence settings used by every run
func WithEngineOptions(opts *engine.Options) Option {
	return func(uc *UseCases) {
		uc.options = opts
	}
}

func WithScales(scales engine.Scales) Option {
	return func(uc *UseCases) {
		uc.scales = scales
	}
}

// WithNotifier announces finished runs. A nil notifier is ignored.
func WithNotifier(n interfaces.Notifier) Option {
	return func(uc *UseCases) {
		uc.notifier = n
	}
}

// WithExporter writes finished runs to an artifact store. A nil exporter is ignored.
func WithExporter(e interfaces.Exporter) Option {
	return func(uc *UseCases) {
		uc.exporter = e
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:   repo,
		scales: engine.DefaultScales(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Analysis = NewAnalysisUseCase(repo, uc.options, uc.scales,
		WithRunNotifier(uc.notifier),
		WithRunExporter(uc.exporter),
	)
	uc.Catalogue = NewCatalogueUseCase(repo)

	return uc
}
