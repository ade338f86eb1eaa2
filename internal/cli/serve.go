package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/picklr-io/reaper/internal/logging"
	"github.com/picklr-io/reaper/internal/schedule"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run reaping passes on a schedule",
	Long: `Runs a reaping pass on every schedule interval boundary until
interrupted. With run_on_startup set, a pass also runs immediately.

A failed pass is logged and the schedule carries on.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := newRunner(ctx, cfg)
	if err != nil {
		return err
	}

	loop := &schedule.Loop{
		Interval:     cfg.ScheduleInterval,
		RunOnStartup: cfg.RunOnStartup,
		Log:          logging.Logger(),
	}
	logging.Info("reaper scheduler started",
		"interval", cfg.ScheduleInterval, "run_on_startup", cfg.RunOnStartup, "dry_run", cfg.DryRun)

	err = loop.Run(ctx, func(ctx context.Context) error {
		_, err := r.run(ctx)
		return err
	})
	logging.Info("reaper scheduler stopped")
	return err
}
