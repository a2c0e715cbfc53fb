package config

import (
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/riskcascade/pkg/engine"
	"github.com/urfave/cli/v3"
)

// AnalysisProfile is the TOML representation of the engine settings
type AnalysisProfile struct {
	Convergence ConvergenceProfile `toml:"convergence"`
	Scales      ScalesProfile      `toml:"scales"`
}

// ConvergenceProfile holds the fixed-point iteration settings
type ConvergenceProfile struct {
	DampingFactor *float64 `toml:"damping_factor"`
	MaxRuns       *int     `toml:"max_runs"`
	Tolerance     *float64 `toml:"tolerance"`
	Criterion     string   `toml:"criterion"`
}

// ScalesProfile holds the class thresholds of the continuous scales
type ScalesProfile struct {
	Probability []float64 `toml:"probability"`
	Impact      []float64 `toml:"impact"`
}

// Validate checks if the profile values are in range
func (p *AnalysisProfile) Validate() error {
	c := p.Convergence
	if c.DampingFactor != nil && (*c.DampingFactor < 0 || *c.DampingFactor > 1) {
		return goerr.Wrap(ErrInvalidConfig, "damping_factor must be between 0 and 1",
			goerr.V(FieldKey, "damping_factor"), goerr.V(ValueKey, *c.DampingFactor))
	}
	if c.MaxRuns != nil && *c.MaxRuns <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "max_runs must be positive",
			goerr.V(FieldKey, "max_runs"), goerr.V(ValueKey, *c.MaxRuns))
	}
	if c.Tolerance != nil && *c.Tolerance <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "tolerance must be positive",
			goerr.V(FieldKey, "tolerance"), goerr.V(ValueKey, *c.Tolerance))
	}
	if c.Criterion != "" {
		if _, err := engine.ParseCriterion(c.Criterion); err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid criterion",
				goerr.V(FieldKey, "criterion"), goerr.V(ValueKey, c.Criterion))
		}
	}
	if len(p.Scales.Probability) > 0 {
		if _, err := engine.NewScale(p.Scales.Probability); err != nil {
			return goerr.Wrap(err, "invalid probability scale", goerr.V(FieldKey, "scales.probability"))
		}
	}
	if len(p.Scales.Impact) > 0 {
		if _, err := engine.NewScale(p.Scales.Impact); err != nil {
			return goerr.Wrap(err, "invalid impact scale", goerr.V(FieldKey, "scales.impact"))
		}
	}
	return nil
}

// LoadAnalysisProfile loads the analysis profile from a TOML file
func LoadAnalysisProfile(path string) (*AnalysisProfile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "analysis profile not found", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read analysis profile", goerr.V(ConfigPathKey, path))
	}

	var profile AnalysisProfile
	if err := toml.Unmarshal(data, &profile); err != nil {
		return nil, goerr.Wrap(err, "failed to parse analysis profile", goerr.V(ConfigPathKey, path))
	}

	if err := profile.Validate(); err != nil {
		return nil, goerr.Wrap(err, "analysis profile validation failed", goerr.V(ConfigPathKey, path))
	}

	return &profile, nil
}

// Analysis holds CLI flags for the engine settings. Flags take precedence
// over the profile file, which takes precedence over the defaults.
type Analysis struct {
	profilePath   string
	dampingFactor float64
	maxRuns       int
	tolerance     float64
	criterion     string
}

// Flags returns CLI flags for analysis configuration
func (x *Analysis) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "analysis-profile",
			Category:    "Analysis",
			Usage:       "Path to the TOML analysis profile",
			Sources:     cli.EnvVars("RISKCASCADE_ANALYSIS_PROFILE"),
			Destination: &x.profilePath,
		},
		&cli.FloatFlag{
			Name:        "damping-factor",
			Category:    "Analysis",
			Usage:       "Attenuation applied to damped cascades (0..1)",
			Value:       -1,
			Sources:     cli.EnvVars("RISKCASCADE_DAMPING_FACTOR"),
			Destination: &x.dampingFactor,
		},
		&cli.IntFlag{
			Name:        "max-runs",
			Category:    "Analysis",
			Usage:       "Maximum iterations per convergence phase",
			Sources:     cli.EnvVars("RISKCASCADE_MAX_RUNS"),
			Destination: &x.maxRuns,
		},
		&cli.FloatFlag{
			Name:        "tolerance",
			Category:    "Analysis",
			Usage:       "Relative change under which a phase is stable",
			Sources:     cli.EnvVars("RISKCASCADE_TOLERANCE"),
			Destination: &x.tolerance,
		},
		&cli.StringFlag{
			Name:        "criterion",
			Category:    "Analysis",
			Usage:       "Convergence criterion (aggregate, per-node)",
			Sources:     cli.EnvVars("RISKCASCADE_CRITERION"),
			Destination: &x.criterion,
		},
	}
}

// LogValue implements slog.LogValuer
func (x Analysis) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("profile", x.profilePath),
		slog.Float64("damping_factor", x.dampingFactor),
		slog.Int("max_runs", x.maxRuns),
		slog.Float64("tolerance", x.tolerance),
		slog.String("criterion", x.criterion),
	)
}

// Configure resolves the engine options and scales
func (x *Analysis) Configure() (*engine.Options, engine.Scales, error) {
	opts := engine.DefaultOptions()
	scales := engine.DefaultScales()

	if x.profilePath != "" {
		profile, err := LoadAnalysisProfile(x.profilePath)
		if err != nil {
			return nil, engine.Scales{}, err
		}
		profile.apply(opts)

		if len(profile.Scales.Probability) > 0 {
			// already validated by LoadAnalysisProfile
			scales.Probability, _ = engine.NewScale(profile.Scales.Probability)
		}
		if len(profile.Scales.Impact) > 0 {
			scales.Impact, _ = engine.NewScale(profile.Scales.Impact)
		}
	}

	if x.dampingFactor >= 0 {
		if x.dampingFactor > 1 {
			return nil, engine.Scales{}, goerr.Wrap(ErrInvalidConfig, "damping-factor must be between 0 and 1",
				goerr.V(ValueKey, x.dampingFactor))
		}
		opts.DampingFactor = x.dampingFactor
	}
	if x.maxRuns < 0 {
		return nil, engine.Scales{}, goerr.Wrap(ErrInvalidConfig, "max-runs must be positive", goerr.V(ValueKey, x.maxRuns))
	}
	if x.maxRuns > 0 {
		opts.MaxRuns = x.maxRuns
	}
	if x.tolerance < 0 {
		return nil, engine.Scales{}, goerr.Wrap(ErrInvalidConfig, "tolerance must be positive", goerr.V(ValueKey, x.tolerance))
	}
	if x.tolerance > 0 {
		opts.Tolerance = x.tolerance
	}
	if x.criterion != "" {
		c, err := engine.ParseCriterion(x.criterion)
		if err != nil {
			return nil, engine.Scales{}, goerr.Wrap(ErrInvalidConfig, err.Error(), goerr.V(ValueKey, x.criterion))
		}
		opts.Criterion = c
	}

	return opts, scales, nil
}

func (p *AnalysisProfile) apply(opts *engine.Options) {
	c := p.Convergence
	if c.DampingFactor != nil {
		opts.DampingFactor = *c.DampingFactor
	}
	if c.MaxRuns != nil {
		opts.MaxRuns = *c.MaxRuns
	}
	if c.Tolerance != nil {
		opts.Tolerance = *c.Tolerance
	}
	if c.Criterion != "" {
		opts.Criterion = engine.Criterion(c.Criterion)
	}
}
