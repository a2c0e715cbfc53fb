package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/cli/config"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/usecase"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
	"github.com/secmon-lab/riskcascade/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// analysisConfig groups the flags every command that runs the analysis needs
type analysisConfig struct {
	repo     config.Repository
	analysis config.Analysis
	slack    config.Slack
	export   config.Export
}

func (x *analysisConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.analysis.Flags()...)
	flags = append(flags, x.slack.Flags()...)
	flags = append(flags, x.export.Flags()...)
	return flags
}

// build wires the repository, the engine settings and the optional
// publishers into the use cases. The returned cleanup closes them all.
func (x *analysisConfig) build(ctx context.Context) (*usecase.UseCases, func(), error) {
	logger := logging.From(ctx)

	opts, scales, err := x.analysis.Configure()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure analysis")
	}

	repo, cleanup, err := openRepository(ctx, &x.repo)
	if err != nil {
		return nil, nil, err
	}

	notifier, err := x.slack.Configure()
	if err != nil {
		cleanup()
		return nil, nil, goerr.Wrap(err, "failed to configure slack notifier")
	}

	exporter, exportCloser, err := x.export.Configure(ctx)
	if err != nil {
		cleanup()
		return nil, nil, goerr.Wrap(err, "failed to configure exporter")
	}
	closeAll := func() {
		safe.Close(ctx, exportCloser)
		cleanup()
	}

	logger.Info("Analysis configuration",
		"repository", x.repo,
		"analysis", x.analysis,
		"slack", x.slack,
		"export", x.export,
	)

	uc := usecase.New(repo,
		usecase.WithEngineOptions(opts),
		usecase.WithScales(scales),
		usecase.WithNotifier(notifier),
		usecase.WithExporter(exporter),
	)

	return uc, closeAll, nil
}

// openRepository configures the repository alone, for commands that do not
// run the analysis
func openRepository(ctx context.Context, cfg *config.Repository) (interfaces.Repository, func(), error) {
	repo, err := cfg.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}
	return repo, func() { safe.Close(ctx, repo) }, nil
}
