package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	httpctrl "github.com/secmon-lab/riskcascade/pkg/controller/http"
	"github.com/secmon-lab/riskcascade/pkg/service/worker"
	"github.com/secmon-lab/riskcascade/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var scheduleInterval time.Duration
	var runOnStart bool
	var triggerInterval time.Duration
	var cfg analysisConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("RISKCASCADE_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "schedule-interval",
			Usage:       "Re-run the analysis at this interval (0 disables the scheduler)",
			Category:    "Scheduler",
			Sources:     cli.EnvVars("RISKCASCADE_SCHEDULE_INTERVAL"),
			Destination: &scheduleInterval,
		},
		&cli.BoolFlag{
			Name:        "run-on-start",
			Usage:       "Run the analysis once when the scheduler starts",
			Category:    "Scheduler",
			Sources:     cli.EnvVars("RISKCASCADE_RUN_ON_START"),
			Destination: &runOnStart,
		},
		&cli.DurationFlag{
			Name:        "trigger-interval",
			Usage:       "Minimum interval between analyses triggered through the API",
			Value:       httpctrl.DefaultTriggerInterval,
			Sources:     cli.EnvVars("RISKCASCADE_TRIGGER_INTERVAL"),
			Destination: &triggerInterval,
		},
	}
	flags = append(flags, cfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server exposing analysis runs",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, cleanup, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var scheduler *worker.AnalysisScheduler
			if scheduleInterval > 0 {
				scheduler = worker.NewAnalysisScheduler(uc.Analysis, scheduleInterval, worker.WithRunOnStart(runOnStart))
				scheduler.Start(ctx)
			}

			server := &http.Server{
				Addr: addr,
				Handler: httpctrl.New(uc.Analysis,
					httpctrl.WithTriggerLimit(triggerInterval, httpctrl.DefaultTriggerBurst),
				),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "schedule_interval", scheduleInterval.String())
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				if scheduler != nil {
					scheduler.Stop()
				}
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Stop the scheduler first so no new run starts during shutdown
				if scheduler != nil {
					scheduler.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
