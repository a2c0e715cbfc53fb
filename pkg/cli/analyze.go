package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdAnalyze() *cli.Command {
	var cfg analysisConfig
	var printSummary bool
	var top int

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "print",
			Usage:       "Print a summary of the run to stdout",
			Sources:     cli.EnvVars("RISKCASCADE_PRINT"),
			Destination: &printSummary,
		},
		&cli.IntFlag{
			Name:        "top",
			Usage:       "Number of risks listed in the printed summary",
			Value:       10,
			Sources:     cli.EnvVars("RISKCASCADE_TOP"),
			Destination: &top,
		},
	}
	flags = append(flags, cfg.Flags()...)

	return &cli.Command{
		Name:    "analyze",
		Aliases: []string{"a"},
		Usage:   "Recompute the whole cascade graph once and store the result",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, cleanup, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := uc.Analysis.Run(ctx)
			if err != nil {
				return goerr.Wrap(err, "analysis failed")
			}

			if printSummary {
				printRun(os.Stdout, run, top)
			}
			return nil
		},
	}
}
