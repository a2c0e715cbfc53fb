package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/cli/config"
	"github.com/secmon-lab/riskcascade/pkg/usecase"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdImport() *cli.Command {
	var cataloguePath string
	var replace bool
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "catalogue",
			Aliases:     []string{"f"},
			Usage:       "Path to the TOML catalogue file",
			Required:    true,
			Sources:     cli.EnvVars("RISKCASCADE_CATALOGUE"),
			Destination: &cataloguePath,
		},
		&cli.BoolFlag{
			Name:        "replace",
			Usage:       "Delete the existing risks, cascades and participations before importing",
			Destination: &replace,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "import",
		Aliases: []string{"i"},
		Usage:   "Import a risk catalogue into the repository",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			cat, err := config.LoadCatalogue(cataloguePath)
			if err != nil {
				return err
			}

			repo, cleanup, err := openRepository(ctx, &repoCfg)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := usecase.NewCatalogueUseCase(repo).Import(ctx, cat, replace)
			if err != nil {
				return goerr.Wrap(err, "failed to import catalogue", goerr.V(config.ConfigPathKey, cataloguePath))
			}

			logger.Info("Catalogue imported",
				"path", cataloguePath,
				"risks", len(result.RiskIDs),
				"cascades", result.Cascades,
				"participations", result.Participations,
			)
			return nil
		},
	}
}
