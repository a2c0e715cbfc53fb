package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow, color.Bold)
)

// printRun writes a human-readable summary of run: convergence of both
// phases and the top risks by total risk
func printRun(w io.Writer, run *model.AnalysisRun, top int) {
	headerColor.Fprintf(w, "Analysis run %s\n", run.ID)
	fmt.Fprintf(w, "  finished:  %s (%s)\n", run.FinishedAt.Format("2006-01-02 15:04:05 MST"), run.FinishedAt.Sub(run.StartedAt))
	fmt.Fprintf(w, "  settings:  damping=%g max_runs=%d tolerance=%g criterion=%s\n",
		run.Parameters.DampingFactor, run.Parameters.MaxRuns, run.Parameters.Tolerance, run.Parameters.Criterion)
	printPhase(w, "probability", run.Probability)
	printPhase(w, "impact", run.Impact)
	fmt.Fprintln(w)

	risks := make([]*model.RiskCalculation, len(run.Risks))
	copy(risks, run.Risks)
	sort.SliceStable(risks, func(i, j int) bool {
		return risks[i].TotalRisk > risks[j].TotalRisk
	})
	if top > 0 && len(risks) > top {
		risks = risks[:top]
	}

	headerColor.Fprintf(w, "Top %d risks\n", len(risks))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDIRECT P\tTOTAL P\tTOTAL RISK\tIMPORTANCE\tRELIABILITY")
	for _, r := range risks {
		fmt.Fprintf(tw, "%d\t%s\t%.4g\t%.4g\t%.4g\t%.2f\t%.2f\n",
			r.RiskID, r.Title, r.DirectProbability, r.TotalProbability, r.TotalRisk,
			r.Metrics.Importance.Total, r.Metrics.Reliability.Total)
	}
	tw.Flush() //nolint:errcheck
}

func printPhase(w io.Writer, name string, s model.ConvergenceSummary) {
	fmt.Fprintf(w, "  %-11s", name+":")
	if s.Converged {
		okColor.Fprintf(w, "converged")
	} else {
		warnColor.Fprintf(w, "NOT CONVERGED")
	}
	fmt.Fprintf(w, " after %d runs (delta %.3g)\n", s.Runs, s.Delta)
}
