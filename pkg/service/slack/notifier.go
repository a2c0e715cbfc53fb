package slack

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
	"github.com/slack-go/slack"
)

// DefaultTopRisks is the number of risks listed in a run summary
const DefaultTopRisks = 5

// Notifier posts analysis run summaries to a Slack channel
type Notifier struct {
	svc       Service
	channelID string
	topRisks  int
	baseURL   string
}

var _ interfaces.Notifier = &Notifier{}

// NotifierOption configures a Notifier
type NotifierOption func(*Notifier)

// WithTopRisks sets how many risks are listed, ordered by total risk
func WithTopRisks(n int) NotifierOption {
	return func(x *Notifier) {
		x.topRisks = n
	}
}

// WithBaseURL adds a link to the run in the API served at baseURL
func WithBaseURL(url string) NotifierOption {
	return func(x *Notifier) {
		x.baseURL = strings.TrimRight(url, "/")
	}
}

// NewNotifier creates a Notifier posting to channelID
func NewNotifier(svc Service, channelID string, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		svc:       svc,
		channelID: channelID,
		topRisks:  DefaultTopRisks,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyRun posts the summary of run
func (x *Notifier) NotifyRun(ctx context.Context, run *model.AnalysisRun) error {
	blocks, text := BuildRunMessage(run, x.topRisks, x.baseURL)

	ts, err := x.svc.PostMessage(ctx, x.channelID, blocks, text)
	if err != nil {
		return goerr.Wrap(err, "failed to notify analysis run", goerr.V("run_id", run.ID))
	}

	channel := x.channelID
	if names, err := x.svc.GetChannelNames(ctx, []string{x.channelID}); err == nil {
		if name, ok := names[x.channelID]; ok {
			channel = "#" + name
		}
	}
	logging.From(ctx).Info("analysis run notified",
		"run_id", run.ID,
		"channel", channel,
		"ts", ts,
	)
	return nil
}

// BuildRunMessage renders the Block Kit summary of a run and its fallback text
func BuildRunMessage(run *model.AnalysisRun, topRisks int, baseURL string) ([]slack.Block, string) {
	status := "converged"
	if !run.Converged() {
		status = "did not converge"
	}
	text := fmt.Sprintf("Risk cascade analysis %s %s (%d risks, %d cascades)",
		run.ID, status, len(run.Risks), len(run.Cascades))

	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, "Risk cascade analysis", false, false),
	)

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Risks*\n%d", len(run.Risks)), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Cascades*\n%d", len(run.Cascades)), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Probability*\n"+phaseStatus(run.Probability, run.Parameters.MaxRuns), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Impact*\n"+phaseStatus(run.Impact, run.Parameters.MaxRuns), false, false),
	}
	summary := slack.NewSectionBlock(nil, fields, nil)

	blocks := []slack.Block{header, summary}

	if !run.Converged() {
		warn := slack.NewTextBlockObject(slack.MarkdownType,
			":warning: At least one phase did not converge. Values are those of the last iteration.", false, false)
		blocks = append(blocks, slack.NewSectionBlock(warn, nil, nil))
	}

	if top := topRiskLines(run, topRisks); top != "" {
		blocks = append(blocks,
			slack.NewDividerBlock(),
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, truncateText("*Top risks*\n"+top, maxFieldBytes), false, false),
				nil, nil,
			),
		)
	}

	ctxText := fmt.Sprintf("run `%s` · damping %.2f · tolerance %g · finished %s",
		run.ID, run.Parameters.DampingFactor, run.Parameters.Tolerance,
		run.FinishedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if baseURL != "" {
		ctxText += fmt.Sprintf(" · <%s/api/runs/%s|details>", baseURL, run.ID)
	}
	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, ctxText, false, false),
	))

	return blocks, text
}

func phaseStatus(s model.ConvergenceSummary, maxRuns int) string {
	if s.Converged {
		return fmt.Sprintf(":white_check_mark: %d iterations", s.Runs)
	}
	return fmt.Sprintf(":x: stopped after %d/%d iterations (Δ %.4g)", s.Runs, maxRuns, s.Delta)
}

func topRiskLines(run *model.AnalysisRun, n int) string {
	if n <= 0 || len(run.Risks) == 0 {
		return ""
	}

	risks := make([]*model.RiskCalculation, len(run.Risks))
	copy(risks, run.Risks)
	sort.SliceStable(risks, func(i, j int) bool {
		return risks[i].TotalRisk > risks[j].TotalRisk
	})
	if len(risks) > n {
		risks = risks[:n]
	}

	var b strings.Builder
	for i, r := range risks {
		fmt.Fprintf(&b, "%d. *%s* risk %.3g, probability %.3g, importance %.2f\n",
			i+1, truncateText(r.Title, 120), r.TotalRisk, r.TotalProbability, r.Metrics.Importance.Total)
	}
	return strings.TrimRight(b.String(), "\n")
}
