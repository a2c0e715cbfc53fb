package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskcascade/pkg/cli/config"
	"github.com/secmon-lab/riskcascade/pkg/engine"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(p, []byte(content), 0600)).Required()
	return p
}

func TestLoadAnalysisProfile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name: "full profile",
			content: `
[convergence]
damping_factor = 0.3
max_runs = 25
tolerance = 0.0001
criterion = "per-node"

[scales]
probability = [0.001, 0.01, 0.1, 0.5, 1.0]
impact = [1e5, 1e6, 1e7, 1e8, 1e9]
`,
		},
		{
			name:    "empty profile",
			content: ``,
		},
		{
			name: "damping factor out of range",
			content: `
[convergence]
damping_factor = 1.5
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "zero max runs",
			content: `
[convergence]
max_runs = 0
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "negative tolerance",
			content: `
[convergence]
tolerance = -0.1
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "unknown criterion",
			content: `
[convergence]
criterion = "strict"
`,
			wantErr: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, "analysis.toml", tt.content)
			profile, err := config.LoadAnalysisProfile(p)
			if tt.wantErr != nil {
				gt.Error(t, err).Is(tt.wantErr)
				return
			}
			gt.NoError(t, err).Required()
			gt.Value(t, profile).NotNil()
		})
	}

	t.Run("unsorted thresholds are rejected", func(t *testing.T) {
		p := writeFile(t, "analysis.toml", `
[scales]
impact = [1e9, 1e8, 1e7, 1e6, 1e5]
`)
		_, err := config.LoadAnalysisProfile(p)
		gt.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadAnalysisProfile(filepath.Join(t.TempDir(), "none.toml"))
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})

	t.Run("malformed TOML", func(t *testing.T) {
		p := writeFile(t, "analysis.toml", "[convergence\n")
		_, err := config.LoadAnalysisProfile(p)
		gt.Error(t, err)
	})
}

func TestAnalysisConfigure(t *testing.T) {
	profile := `
[convergence]
damping_factor = 0.3
max_runs = 25
tolerance = 0.0001
criterion = "per-node"

[scales]
probability = [0.001, 0.01, 0.1, 0.5, 1.0]
`

	t.Run("defaults without profile or flags", func(t *testing.T) {
		opts, scales, err := config.NewAnalysisForTest("", -1, 0, 0, "").Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, opts.DampingFactor).Equal(engine.DefaultDampingFactor)
		gt.Value(t, opts.MaxRuns).Equal(engine.DefaultMaxRuns)
		gt.Value(t, opts.Tolerance).Equal(engine.DefaultTolerance)
		gt.Value(t, opts.Criterion).Equal(engine.CriterionAggregate)
		gt.Value(t, scales.Impact.Thresholds).Equal(engine.DefaultImpactThresholds)
	})

	t.Run("profile values are applied", func(t *testing.T) {
		p := writeFile(t, "analysis.toml", profile)
		opts, scales, err := config.NewAnalysisForTest(p, -1, 0, 0, "").Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, opts.DampingFactor).Equal(0.3)
		gt.Value(t, opts.MaxRuns).Equal(25)
		gt.Value(t, opts.Tolerance).Equal(0.0001)
		gt.Value(t, opts.Criterion).Equal(engine.CriterionPerNode)
		gt.Value(t, scales.Probability.Thresholds).Equal([]float64{0.001, 0.01, 0.1, 0.5, 1.0})
		gt.Value(t, scales.Impact.Thresholds).Equal(engine.DefaultImpactThresholds)
	})

	t.Run("flags override profile", func(t *testing.T) {
		p := writeFile(t, "analysis.toml", profile)
		opts, _, err := config.NewAnalysisForTest(p, 0, 7, 0.01, "aggregate").Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, opts.DampingFactor).Equal(0.0)
		gt.Value(t, opts.MaxRuns).Equal(7)
		gt.Value(t, opts.Tolerance).Equal(0.01)
		gt.Value(t, opts.Criterion).Equal(engine.CriterionAggregate)
	})

	t.Run("invalid flags", func(t *testing.T) {
		_, _, err := config.NewAnalysisForTest("", 2, 0, 0, "").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)

		_, _, err = config.NewAnalysisForTest("", -1, -3, 0, "").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)

		_, _, err = config.NewAnalysisForTest("", -1, 0, 0, "loose").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestRepositoryConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("memory backend", func(t *testing.T) {
		repo, err := config.NewRepositoryForTest("memory", "", "").Configure(ctx)
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Close())
	})

	t.Run("sqlite backend", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "db", "risk.db")
		repo, err := config.NewRepositoryForTest("sqlite", "", p).Configure(ctx)
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Close())

		_, err = os.Stat(p)
		gt.NoError(t, err)
	})

	t.Run("firestore backend requires project", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("firestore", "", "").Configure(ctx)
		gt.Error(t, err).Is(config.ErrMissingOption)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("redis", "", "").Configure(ctx)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestSlackConfigure(t *testing.T) {
	t.Run("disabled without settings", func(t *testing.T) {
		n, err := config.NewSlackForTest("", "").Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, n).Nil()
	})

	t.Run("partial settings are rejected", func(t *testing.T) {
		_, err := config.NewSlackForTest("xoxb-token", "").Configure()
		gt.Error(t, err).Is(config.ErrMissingOption)
	})

	t.Run("notifier is created", func(t *testing.T) {
		n, err := config.NewSlackForTest("xoxb-token", "C123").Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, n).NotNil()
	})
}

func TestExportConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled without destination", func(t *testing.T) {
		x, closer, err := config.NewExportForTest("", "").Configure(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, x).Nil()
		gt.NoError(t, closer.Close())
	})

	t.Run("local directory", func(t *testing.T) {
		x, closer, err := config.NewExportForTest("", t.TempDir()).Configure(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, x).NotNil()
		gt.NoError(t, closer.Close())
	})

	t.Run("bucket and directory are exclusive", func(t *testing.T) {
		_, _, err := config.NewExportForTest("bucket", t.TempDir()).Configure(ctx)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestLoggerConfigure(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "console info", level: "info", format: "console"},
		{name: "json debug", level: "DEBUG", format: "json"},
		{name: "unknown level", level: "verbose", format: "console", wantErr: true},
		{name: "unknown format", level: "info", format: "xml", wantErr: true},
	}

	orig := logging.Default()
	t.Cleanup(func() { logging.SetDefault(orig) })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out.log")
			closer, err := config.NewLoggerForTest(tt.level, tt.format, out).Configure()
			defer closer()
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
		})
	}
}
