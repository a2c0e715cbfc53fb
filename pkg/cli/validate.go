package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/cli/config"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	"github.com/secmon-lab/riskcascade/pkg/repository/memory"
	"github.com/secmon-lab/riskcascade/pkg/usecase"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// ErrValidationFailed is returned when the catalogue has error-level issues
var ErrValidationFailed = goerr.New("catalogue validation failed")

func cmdValidate() *cli.Command {
	var cataloguePath string
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "catalogue",
			Aliases:     []string{"f"},
			Usage:       "Validate a TOML catalogue file instead of the stored catalogue",
			Sources:     cli.EnvVars("RISKCASCADE_CATALOGUE"),
			Destination: &cataloguePath,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Check the catalogue for problems that would abort an analysis run",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			var repo interfaces.Repository
			if cataloguePath != "" {
				// Stage the file in memory so the same checks apply
				cat, err := config.LoadCatalogue(cataloguePath)
				if err != nil {
					return err
				}
				repo = memory.New()
				if _, err := usecase.NewCatalogueUseCase(repo).Import(ctx, cat, false); err != nil {
					return goerr.Wrap(err, "catalogue file is inconsistent", goerr.V(config.ConfigPathKey, cataloguePath))
				}
			} else {
				r, cleanup, err := openRepository(ctx, &repoCfg)
				if err != nil {
					return err
				}
				defer cleanup()
				repo = r
			}

			result, err := usecase.NewCatalogueUseCase(repo).Validate(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to validate catalogue")
			}

			return reportValidation(logger, result)
		},
	}
}

func reportValidation(logger *slog.Logger, result *usecase.ValidationResult) error {
	for _, issue := range result.Issues {
		args := []any{"entity", issue.Entity, "id", issue.ID, "field", issue.Field, "message", issue.Message}
		if issue.Severity == usecase.SeverityError {
			logger.Error("Validation error", args...)
		} else {
			logger.Warn("Validation warning", args...)
		}
	}

	logger.Info("Validation finished",
		"risks", result.Risks,
		"cascades", result.Cascades,
		"participations", result.Participations,
		"issues", len(result.Issues),
	)

	if result.HasErrors() {
		return goerr.Wrap(ErrValidationFailed, "catalogue has errors", goerr.V("issues", len(result.Issues)))
	}
	return nil
}
