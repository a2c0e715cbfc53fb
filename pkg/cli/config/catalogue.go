package config

import (
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/domain/types"
)

// CatalogueFile is the TOML layout of a catalogue import file
type CatalogueFile struct {
	Risks          []RiskEntry          `toml:"risk"`
	Cascades       []CascadeEntry       `toml:"cascade"`
	Participations []ParticipationEntry `toml:"participation"`
}

// RiskEntry is one [[risk]] table
type RiskEntry struct {
	Key                   string      `toml:"key"`
	Title                 string      `toml:"title"`
	Description           string      `toml:"description"`
	Quality               string      `toml:"quality"`
	Reliability           float64     `toml:"reliability"`
	SubjectiveImportance  float64     `toml:"subjective_importance"`
	DirectProbability     []float64   `toml:"direct_probability"`
	DirectProbability2050 []float64   `toml:"direct_probability_2050"`
	DirectImpact          ImpactEntry `toml:"direct_impact"`
}

// ImpactEntry holds one row of damage category values per scenario
type ImpactEntry struct {
	Considerable []float64 `toml:"considerable"`
	Major        []float64 `toml:"major"`
	Extreme      []float64 `toml:"extreme"`
}

// CascadeEntry is one [[cascade]] table
type CascadeEntry struct {
	Cause   string      `toml:"cause"`
	Effect  string      `toml:"effect"`
	Quality string      `toml:"quality"`
	Damp    bool        `toml:"damp"`
	Matrix  [][]float64 `toml:"matrix"`
}

// ParticipationEntry is one [[participation]] table
type ParticipationEntry struct {
	Risk                    string `toml:"risk"`
	Contact                 string `toml:"contact"`
	Role                    string `toml:"role"`
	DirectAnalysisComplete  bool   `toml:"direct_analysis_complete"`
	CascadeAnalysisComplete bool   `toml:"cascade_analysis_complete"`
}

// LoadCatalogue reads a TOML catalogue file and converts it to the domain
// representation. Key references are resolved later by the import use case.
func LoadCatalogue(path string) (*model.Catalogue, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "catalogue file not found", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read catalogue file", goerr.V(ConfigPathKey, path))
	}

	var file CatalogueFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse catalogue file", goerr.V(ConfigPathKey, path))
	}

	cat, err := file.ToDomain()
	if err != nil {
		return nil, goerr.Wrap(err, "invalid catalogue file", goerr.V(ConfigPathKey, path))
	}
	return cat, nil
}

// ToDomain converts the file layout into a model.Catalogue
func (f *CatalogueFile) ToDomain() (*model.Catalogue, error) {
	cat := &model.Catalogue{}

	for i, entry := range f.Risks {
		risk, err := entry.toRisk()
		if err != nil {
			return nil, goerr.Wrap(err, "invalid risk entry", goerr.V("index", i), goerr.V("key", entry.Key))
		}
		cat.Risks = append(cat.Risks, model.CatalogueRisk{Key: entry.Key, Risk: risk})
	}

	for i, entry := range f.Cascades {
		cascade, err := entry.toCascade()
		if err != nil {
			return nil, goerr.Wrap(err, "invalid cascade entry", goerr.V("index", i),
				goerr.V("cause", entry.Cause), goerr.V("effect", entry.Effect))
		}
		cat.Cascades = append(cat.Cascades, model.CatalogueCascade{
			CauseKey:  entry.Cause,
			EffectKey: entry.Effect,
			Cascade:   cascade,
		})
	}

	for _, entry := range f.Participations {
		cat.Participations = append(cat.Participations, model.CatalogueParticipation{
			RiskKey: entry.Risk,
			Participation: &model.Participation{
				Contact:                 entry.Contact,
				Role:                    entry.Role,
				DirectAnalysisComplete:  entry.DirectAnalysisComplete,
				CascadeAnalysisComplete: entry.CascadeAnalysisComplete,
			},
		})
	}

	return cat, nil
}

func (e RiskEntry) toRisk() (*model.Risk, error) {
	if e.Key == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "risk key is required")
	}
	if e.Title == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "risk title is required")
	}

	quality, err := parseQuality(e.Quality)
	if err != nil {
		return nil, err
	}

	dp, err := scenarioValues("direct_probability", e.DirectProbability)
	if err != nil {
		return nil, err
	}
	dp50, err := scenarioValues("direct_probability_2050", e.DirectProbability2050)
	if err != nil {
		return nil, err
	}

	var di types.ImpactValues
	rows := [types.ScenarioCount][]float64{e.DirectImpact.Considerable, e.DirectImpact.Major, e.DirectImpact.Extreme}
	for _, s := range types.AllScenarios() {
		row := rows[s]
		if len(row) == 0 {
			continue
		}
		if len(row) != types.DamageCategoryCount {
			return nil, goerr.Wrap(ErrInvalidConfig, "impact row must have one value per damage category",
				goerr.V(FieldKey, "direct_impact."+s.String()), goerr.V("length", len(row)))
		}
		copy(di[s][:], row)
	}

	return &model.Risk{
		Title:                 e.Title,
		Description:           e.Description,
		Quality:               quality,
		Reliability:           e.Reliability,
		SubjectiveImportance:  e.SubjectiveImportance,
		DirectProbability:     dp,
		DirectProbability2050: dp50,
		DirectImpact:          di,
	}, nil
}

func (e CascadeEntry) toCascade() (*model.Cascade, error) {
	if e.Cause == "" || e.Effect == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "cascade cause and effect are required")
	}

	quality, err := parseQuality(e.Quality)
	if err != nil {
		return nil, err
	}

	var matrix types.ConditionalMatrix
	if len(e.Matrix) != types.ScenarioCount {
		return nil, goerr.Wrap(ErrInvalidConfig, "matrix must have one row per cause scenario",
			goerr.V(FieldKey, "matrix"), goerr.V("length", len(e.Matrix)))
	}
	for i, row := range e.Matrix {
		if len(row) != types.ScenarioCount {
			return nil, goerr.Wrap(ErrInvalidConfig, "matrix row must have one value per effect scenario",
				goerr.V(FieldKey, "matrix"), goerr.V("row", i), goerr.V("length", len(row)))
		}
		copy(matrix[i][:], row)
	}

	return &model.Cascade{
		Quality: quality,
		Damp:    e.Damp,
		Matrix:  matrix,
	}, nil
}

func parseQuality(s string) (types.Quality, error) {
	if s == "" {
		return types.QualityMissing, nil
	}
	q, err := types.ParseQuality(strings.ToUpper(s))
	if err != nil {
		return "", goerr.Wrap(ErrInvalidConfig, "invalid quality", goerr.V(FieldKey, "quality"), goerr.V(ValueKey, s))
	}
	return q, nil
}

func scenarioValues(field string, values []float64) (types.ScenarioValues, error) {
	var v types.ScenarioValues
	if len(values) == 0 {
		return v, nil
	}
	if len(values) != types.ScenarioCount {
		return v, goerr.Wrap(ErrInvalidConfig, "expected one value per scenario",
			goerr.V(FieldKey, field), goerr.V("length", len(values)))
	}
	copy(v[:], values)
	return v, nil
}
