package slack_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskcascade/pkg/service/slack"
)

func TestNew(t *testing.T) {
	t.Run("returns error when token is empty", func(t *testing.T) {
		_, err := slack.New("")
		gt.Value(t, err).NotNil()
	})

	t.Run("creates service when token is provided", func(t *testing.T) {
		svc, err := slack.New("test-token")
		gt.NoError(t, err).Required()
		gt.Value(t, svc).NotNil()
	})
}

func TestIntegration(t *testing.T) {
	token := os.Getenv("TEST_SLACK_BOT_TOKEN")
	if token == "" {
		t.Skip("TEST_SLACK_BOT_TOKEN is not set")
	}
	channelID := os.Getenv("TEST_SLACK_CHANNEL_ID")
	if channelID == "" {
		t.Skip("TEST_SLACK_CHANNEL_ID is not set")
	}

	ctx := context.Background()
	svc, err := slack.New(token)
	gt.NoError(t, err).Required()

	t.Run("GetChannelNames resolves the channel", func(t *testing.T) {
		names, err := svc.GetChannelNames(ctx, []string{channelID})
		gt.NoError(t, err).Required()
		gt.Map(t, names).HasKey(channelID)
	})

	t.Run("GetChannelNames with empty slice returns empty map", func(t *testing.T) {
		names, err := svc.GetChannelNames(ctx, []string{})
		gt.NoError(t, err).Required()
		gt.Number(t, len(names)).Equal(0)
	})

	t.Run("NotifyRun posts a summary", func(t *testing.T) {
		n := slack.NewNotifier(svc, channelID)
		gt.NoError(t, n.NotifyRun(ctx, sampleRun())).Required()
	})
}
