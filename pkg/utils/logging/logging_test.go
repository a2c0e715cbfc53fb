package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
)

func TestFromFallsBackToDefault(t *testing.T) {
	gt.Value(t, logging.From(context.Background())).Equal(logging.Default())
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := logging.With(context.Background(), logger)
	logging.From(ctx).Info("hello", "run_id", "r1")

	gt.String(t, buf.String()).Contains("hello")
	gt.String(t, buf.String()).Contains("run_id=r1")
}

func TestSetDefault(t *testing.T) {
	orig := logging.Default()
	defer logging.SetDefault(orig)

	logger := slog.New(slog.DiscardHandler)
	logging.SetDefault(logger)
	gt.Value(t, logging.Default()).Equal(logger)
}
