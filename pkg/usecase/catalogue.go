package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
)

// CatalogueUseCase maintains the risk catalogue the analysis runs on
type CatalogueUseCase struct {
	repo interfaces.Repository
}

func NewCatalogueUseCase(repo interfaces.Repository) *CatalogueUseCase {
	return &CatalogueUseCase{repo: repo}
}

// ImportResult maps catalogue keys to the IDs assigned by the repository
type ImportResult struct {
	RiskIDs        map[string]int64
	Cascades       int
	Participations int
}

// Import writes every entry of cat into the repository. All key references
// are resolved before anything is written, so an unresolvable catalogue
// leaves the repository untouched. With replace set, the existing catalogue
// is deleted first; stored analysis runs are kept.
func (uc *CatalogueUseCase) Import(ctx context.Context, cat *model.Catalogue, replace bool) (*ImportResult, error) {
	if err := checkKeys(cat); err != nil {
		return nil, err
	}

	if replace {
		if err := uc.clear(ctx); err != nil {
			return nil, goerr.Wrap(err, "failed to clear existing catalogue")
		}
	}

	result := &ImportResult{RiskIDs: make(map[string]int64, len(cat.Risks))}

	for _, entry := range cat.Risks {
		created, err := uc.repo.Risk().Create(ctx, entry.Risk)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create risk", goerr.V(CatalogueKeyKey, entry.Key))
		}
		result.RiskIDs[entry.Key] = created.ID
	}

	for _, entry := range cat.Cascades {
		cascade := entry.Cascade.Copy()
		cascade.CauseID = result.RiskIDs[entry.CauseKey]
		cascade.EffectID = result.RiskIDs[entry.EffectKey]
		if _, err := uc.repo.Cascade().Create(ctx, cascade); err != nil {
			return nil, goerr.Wrap(err, "failed to create cascade",
				goerr.V("cause", entry.CauseKey), goerr.V("effect", entry.EffectKey))
		}
		result.Cascades++
	}

	for _, entry := range cat.Participations {
		p := entry.Participation.Copy()
		p.RiskID = result.RiskIDs[entry.RiskKey]
		if _, err := uc.repo.Participation().Create(ctx, p); err != nil {
			return nil, goerr.Wrap(err, "failed to create participation", goerr.V(CatalogueKeyKey, entry.RiskKey))
		}
		result.Participations++
	}

	logging.From(ctx).Info("catalogue imported",
		"risks", len(result.RiskIDs),
		"cascades", result.Cascades,
		"participations", result.Participations,
		"replace", replace,
	)

	return result, nil
}

func checkKeys(cat *model.Catalogue) error {
	if cat == nil || len(cat.Risks) == 0 {
		return goerr.Wrap(ErrEmptyCatalogue, "catalogue has no risks to import")
	}

	keys := make(map[string]struct{}, len(cat.Risks))
	for _, entry := range cat.Risks {
		if entry.Risk == nil {
			return goerr.Wrap(ErrInvalidCatalogue, "risk entry has no data", goerr.V(CatalogueKeyKey, entry.Key))
		}
		if _, dup := keys[entry.Key]; dup {
			return goerr.Wrap(ErrInvalidCatalogue, "duplicate risk key", goerr.V(CatalogueKeyKey, entry.Key))
		}
		keys[entry.Key] = struct{}{}
	}

	for _, entry := range cat.Cascades {
		if entry.Cascade == nil {
			return goerr.Wrap(ErrInvalidCatalogue, "cascade entry has no data", goerr.V("cause", entry.CauseKey))
		}
		for _, key := range []string{entry.CauseKey, entry.EffectKey} {
			if _, ok := keys[key]; !ok {
				return goerr.Wrap(ErrInvalidCatalogue, "cascade refers to unknown risk", goerr.V(CatalogueKeyKey, key))
			}
		}
	}

	for _, entry := range cat.Participations {
		if entry.Participation == nil {
			return goerr.Wrap(ErrInvalidCatalogue, "participation entry has no data", goerr.V(CatalogueKeyKey, entry.RiskKey))
		}
		if _, ok := keys[entry.RiskKey]; !ok {
			return goerr.Wrap(ErrInvalidCatalogue, "participation refers to unknown risk", goerr.V(CatalogueKeyKey, entry.RiskKey))
		}
	}

	return nil
}

func (uc *CatalogueUseCase) clear(ctx context.Context) error {
	participations, err := uc.repo.Participation().List(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list participations")
	}
	for _, p := range participations {
		if err := uc.repo.Participation().Delete(ctx, p.ID); err != nil {
			return goerr.Wrap(err, "failed to delete participation", goerr.V("participation_id", p.ID))
		}
	}

	cascades, err := uc.repo.Cascade().List(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list cascades")
	}
	for _, c := range cascades {
		if err := uc.repo.Cascade().Delete(ctx, c.ID); err != nil {
			return goerr.Wrap(err, "failed to delete cascade", goerr.V(CascadeIDKey, c.ID))
		}
	}

	risks, err := uc.repo.Risk().List(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list risks")
	}
	for _, r := range risks {
		if err := uc.repo.Risk().Delete(ctx, r.ID); err != nil {
			return goerr.Wrap(err, "failed to delete risk", goerr.V(RiskIDKey, r.ID))
		}
	}
	return nil
}

// Severity of a validation issue. Errors prevent an analysis run from
// completing; warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue describes one problem found in the stored catalogue
type ValidationIssue struct {
	Severity Severity
	Entity   string
	ID       int64
	Field    string
	Message  string
}

func (i ValidationIssue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("[%s] %s %d: %s", i.Severity, i.Entity, i.ID, i.Message)
	}
	return fmt.Sprintf("[%s] %s %d %s: %s", i.Severity, i.Entity, i.ID, i.Field, i.Message)
}

// ValidationResult collects the issues of one validation pass
type ValidationResult struct {
	Risks          int
	Cascades       int
	Participations int
	Issues         []ValidationIssue
}

// HasErrors reports whether any issue would abort an analysis run
func (r *ValidationResult) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r *ValidationResult) add(sev Severity, entity string, id int64, field, msg string) {
	r.Issues = append(r.Issues, ValidationIssue{
		Severity: sev,
		Entity:   entity,
		ID:       id,
		Field:    field,
		Message:  msg,
	})
}

// Validate checks the stored catalogue for the problems the engine rejects
// (dangling references, non-finite or negative base values, out-of-range
// conditional probabilities) and for suspicious but tolerated values.
func (uc *CatalogueUseCase) Validate(ctx context.Context) (*ValidationResult, error) {
	risks, err := uc.repo.Risk().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risks")
	}
	cascades, err := uc.repo.Cascade().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list cascades")
	}
	participations, err := uc.repo.Participation().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list participations")
	}

	result := &ValidationResult{
		Risks:          len(risks),
		Cascades:       len(cascades),
		Participations: len(participations),
	}

	known := make(map[int64]struct{}, len(risks))
	for _, r := range risks {
		known[r.ID] = struct{}{}
		validateRisk(result, r)
	}

	for _, c := range cascades {
		if _, ok := known[c.CauseID]; !ok {
			result.add(SeverityError, "cascade", c.ID, "cause_id", fmt.Sprintf("risk %d does not exist", c.CauseID))
		}
		if _, ok := known[c.EffectID]; !ok {
			result.add(SeverityError, "cascade", c.ID, "effect_id", fmt.Sprintf("risk %d does not exist", c.EffectID))
		}
		if err := c.Matrix.Validate(); err != nil {
			result.add(SeverityError, "cascade", c.ID, "matrix", err.Error())
		}
		if !c.Quality.IsValid() {
			result.add(SeverityWarning, "cascade", c.ID, "quality", fmt.Sprintf("unknown quality %q", c.Quality))
		}
	}

	for _, p := range participations {
		if _, ok := known[p.RiskID]; !ok {
			result.add(SeverityWarning, "participation", p.ID, "risk_id", fmt.Sprintf("risk %d does not exist", p.RiskID))
		}
	}

	if len(risks) == 0 {
		result.add(SeverityError, "catalogue", 0, "", "no risks defined")
	}

	return result, nil
}

func validateRisk(result *ValidationResult, r *model.Risk) {
	check := func(field string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			result.add(SeverityError, "risk", r.ID, field, fmt.Sprintf("value %v must be finite and non-negative", v))
		}
	}

	for _, s := range types.AllScenarios() {
		check("direct_probability."+s.String(), r.DirectProbability[s])
		check("direct_probability_2050."+s.String(), r.DirectProbability2050[s])
		for _, c := range types.AllDamageCategories() {
			check("direct_impact."+s.String()+"."+c.String(), r.DirectImpact[s][c])
		}
	}

	if r.Reliability < 0 || r.Reliability > 1 {
		result.add(SeverityWarning, "risk", r.ID, "reliability", fmt.Sprintf("value %v is outside [0, 1]", r.Reliability))
	}
	if r.SubjectiveImportance < 0 || r.SubjectiveImportance > 5 {
		result.add(SeverityWarning, "risk", r.ID, "subjective_importance", fmt.Sprintf("value %v is outside [0, 5]", r.SubjectiveImportance))
	}
	if !r.Quality.IsValid() {
		result.add(SeverityWarning, "risk", r.ID, "quality", fmt.Sprintf("unknown quality %q", r.Quality))
	}
}
