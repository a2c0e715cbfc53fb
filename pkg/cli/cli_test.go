package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskcascade/pkg/cli"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/repository/sqlite"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
)

const catalogueTOML = `
[[risk]]
key = "drought"
title = "Drought"
quality = "CONSENSUS"
reliability = 0.9
subjective_importance = 2
direct_probability = [0.2, 0.02, 0.002]
direct_probability_2050 = [0.3, 0.03, 0.003]

[risk.direct_impact]
considerable = [0, 0, 10, 0, 0, 0, 0, 1e5, 1e6, 0]
major = [1, 5, 100, 0, 0, 0, 0, 1e6, 1e7, 0]
extreme = [10, 50, 1000, 0, 0, 0, 0, 1e7, 1e8, 0]

[[risk]]
key = "wildfire"
title = "Wildfire"
quality = "AVERAGE"
reliability = 0.6
subjective_importance = 3
direct_probability = [0.1, 0.01, 0.001]

[risk.direct_impact]
major = [2, 10, 200, 0, 0, 0, 0, 1e6, 1e7, 0]

[[cascade]]
cause = "drought"
effect = "wildfire"
quality = "AVERAGE"
matrix = [[0.3, 0.1, 0.0], [0.5, 0.2, 0.05], [0.7, 0.4, 0.1]]
`

func writeCatalogue(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "catalogue.toml")
	gt.NoError(t, os.WriteFile(p, []byte(content), 0600)).Required()
	return p
}

func runApp(t *testing.T, args ...string) error {
	t.Helper()
	orig := logging.Default()
	t.Cleanup(func() { logging.SetDefault(orig) })

	return cli.Run(context.Background(), append([]string{"riskcascade", "--log-level", "error"}, args...), "test")
}

func TestImportAndAnalyze(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "riskcascade.db")
	exportDir := t.TempDir()
	catalogue := writeCatalogue(t, catalogueTOML)

	gt.NoError(t, runApp(t, "import",
		"--catalogue", catalogue,
		"--repository-backend", "sqlite",
		"--sqlite-path", dbPath,
	)).Required()

	gt.NoError(t, runApp(t, "analyze",
		"--repository-backend", "sqlite",
		"--sqlite-path", dbPath,
		"--export-dir", exportDir,
		"--max-runs", "50",
	)).Required()

	repo, err := sqlite.New(context.Background(), dbPath)
	gt.NoError(t, err).Required()
	defer repo.Close()

	run, err := repo.AnalysisRun().Latest(context.Background())
	gt.NoError(t, err).Required()
	gt.A(t, run.Risks).Length(2)
	gt.A(t, run.Cascades).Length(1)
	gt.Value(t, run.Parameters.MaxRuns).Equal(50)

	var exported []string
	err = filepath.WalkDir(exportDir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			exported = append(exported, path)
		}
		return err
	})
	gt.NoError(t, err).Required()
	gt.A(t, exported).Length(1)
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid catalogue file", func(t *testing.T) {
		gt.NoError(t, runApp(t, "validate", "--catalogue", writeCatalogue(t, catalogueTOML)))
	})

	t.Run("negative probability", func(t *testing.T) {
		content := `
[[risk]]
key = "a"
title = "A"
direct_probability = [-0.1, 0, 0]
`
		err := runApp(t, "validate", "--catalogue", writeCatalogue(t, content))
		gt.Error(t, err).Is(cli.ErrValidationFailed)
	})

	t.Run("dangling cascade key", func(t *testing.T) {
		content := `
[[risk]]
key = "a"
title = "A"

[[cascade]]
cause = "a"
effect = "b"
matrix = [[0, 0, 0], [0, 0, 0], [0, 0, 0]]
`
		gt.Error(t, runApp(t, "validate", "--catalogue", writeCatalogue(t, content)))
	})
}

func TestPrintRun(t *testing.T) {
	color.NoColor = true

	run := &model.AnalysisRun{
		ID:          "run-1",
		Parameters:  model.AnalysisParameters{DampingFactor: 0.5, MaxRuns: 100, Tolerance: 1e-4, Criterion: "aggregate"},
		Probability: model.ConvergenceSummary{Runs: 4, Converged: true},
		Impact:      model.ConvergenceSummary{Runs: 100, Converged: false, Delta: 0.2},
		Risks: []*model.RiskCalculation{
			{RiskID: 1, Title: "Low", TotalRisk: 1},
			{RiskID: 2, Title: "High", TotalRisk: 100},
			{RiskID: 3, Title: "Mid", TotalRisk: 10},
		},
		StartedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 1, 0, 0, 2, 0, time.UTC),
	}

	var buf bytes.Buffer
	cli.PrintRun(&buf, run, 2)
	out := buf.String()

	gt.String(t, out).Contains("Analysis run run-1")
	gt.String(t, out).Contains("NOT CONVERGED")
	gt.String(t, out).Contains("Top 2 risks")
	gt.String(t, out).Contains("High")
	gt.String(t, out).Contains("Mid")
	gt.Bool(t, bytes.Contains(buf.Bytes(), []byte("Low"))).False()
}

func TestIndexConfig(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "participations"},
		{prefix: "staging", want: "staging_participations"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cfg := cli.GetIndexConfig(tt.prefix)
			gt.A(t, cfg.Collections).Length(1)
			gt.Value(t, cfg.Collections[0].Name).Equal(tt.want)
			gt.A(t, cfg.Collections[0].Indexes[0].Fields).Length(2)
		})
	}
}
