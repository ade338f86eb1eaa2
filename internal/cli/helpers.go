package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/picklr-io/reaper/internal/config"
	"github.com/picklr-io/reaper/internal/engine"
	"github.com/picklr-io/reaper/internal/logging"
	"github.com/picklr-io/reaper/internal/provider"
	"github.com/picklr-io/reaper/internal/report"
)

// newRegistry is swapped out in tests.
var newRegistry = provider.NewRegistry

// loadConfig reads the configuration, applies the persistent flags and
// initializes logging to the command's error stream.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context(), configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Override("log_level", logLevel)
	cfg.Override("log_format", logFormat)
	cfg.Override("backend", backend)
	cfg.Override("fixture", fixture)
	if cmd.Flags().Changed("dry-run") {
		cfg.SetDryRun(dryRun)
	}

	logging.InitTo(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

// runner performs reaping runs and publishes their summaries.
type runner struct {
	reaper *engine.Reaper
	sink   report.Sink
}

// newRunner validates cfg before any cloud call is made, then builds the
// backend and the report sinks.
func newRunner(ctx context.Context, cfg *config.Config) (*runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := newRegistry().Load(ctx, cfg.Backend, cfg)
	if err != nil {
		return nil, err
	}

	sinks := report.Multi{report.LogSink{Log: logging.Logger()}}
	if cfg.ReportBucket != "" {
		s3Sink, err := report.NewS3Sink(ctx, cfg.ReportBucket, cfg.ReportPrefix, cfg.ReportRegion)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3Sink)
	}

	return &runner{
		reaper: engine.NewReaper(client, cfg.EngineOptions(), logging.Logger()),
		sink:   sinks,
	}, nil
}

// run performs one pass. A summary that cannot be published is logged and
// does not fail the run.
func (r *runner) run(ctx context.Context) (*engine.RunStats, error) {
	stats, err := r.reaper.Run(ctx)
	if stats != nil {
		if perr := r.sink.Publish(context.WithoutCancel(ctx), stats); perr != nil {
			logging.Error("failed to publish run summary", "run_id", stats.RunID, "error", perr)
		}
	}
	return stats, err
}

func printSummary(w io.Writer, stats *engine.RunStats) {
	mode := ""
	if stats.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "Run %s finished in %s%s\n", stats.RunID, stats.Duration().Round(time.Millisecond), mode)
	fmt.Fprintf(w, "  resource groups:   %d listed, %d failed\n", stats.GroupsListed, stats.GroupsFailed)
	fmt.Fprintf(w, "  resources:         %d evaluated, %d expired\n", stats.Evaluated, stats.Expired)
	fmt.Fprintf(w, "  skipped:           %d owned, %d unparsable, %d without creation time\n",
		stats.DeferredOwned, stats.Unparsable, stats.MissingCreatedAt)
	fmt.Fprintf(w, "  not deleted:       %d unresolved, %d failed\n", stats.Unresolved, stats.DeleteFailed)
	if stats.DryRun {
		fmt.Fprintf(w, "  would delete:      %d\n", stats.WouldDelete)
	} else {
		fmt.Fprintf(w, "  deleted:           %d\n", stats.Deleted)
	}
	for _, id := range stats.DeletedIDs {
		fmt.Fprintf(w, "    - %s\n", id)
	}
}
