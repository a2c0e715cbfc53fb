package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds CLI flags for run notifications
type Slack struct {
	botToken  string
	channelID string
	topRisks  int
	baseURL   string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (for posting run summaries)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("RISKCASCADE_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel-id",
			Usage:       "Slack channel ID receiving run summaries",
			Category:    "Slack",
			Destination: &x.channelID,
			Sources:     cli.EnvVars("RISKCASCADE_SLACK_CHANNEL_ID"),
		},
		&cli.IntFlag{
			Name:        "slack-top-risks",
			Usage:       "Number of risks listed in a run summary",
			Category:    "Slack",
			Value:       slack.DefaultTopRisks,
			Destination: &x.topRisks,
			Sources:     cli.EnvVars("RISKCASCADE_SLACK_TOP_RISKS"),
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Public base URL of the API, linked from run summaries",
			Category:    "Slack",
			Destination: &x.baseURL,
			Sources:     cli.EnvVars("RISKCASCADE_BASE_URL"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.String("channel-id", x.channelID),
	)
}

// IsConfigured checks if notification settings are complete
func (x *Slack) IsConfigured() bool {
	return x.botToken != "" && x.channelID != ""
}

// Configure creates a Notifier, or returns nil when Slack is not configured
func (x *Slack) Configure() (interfaces.Notifier, error) {
	if x.botToken == "" && x.channelID == "" {
		return nil, nil
	}
	if !x.IsConfigured() {
		return nil, goerr.Wrap(ErrMissingOption, "both --slack-bot-token and --slack-channel-id are required for notifications")
	}

	svc, err := slack.New(x.botToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Slack service")
	}

	return slack.NewNotifier(svc, x.channelID,
		slack.WithTopRisks(x.topRisks),
		slack.WithBaseURL(x.baseURL),
	), nil
}
