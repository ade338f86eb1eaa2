package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single reaping pass",
	Long: `Lists every resource group, deletes the resources whose lifetime has
run out and prints a summary of the run.

Resources managed by another resource are left for a later run, once
their owner is gone. Failures on one group or resource do not stop the
run; only a failure to list resource groups does.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	r, err := newRunner(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	stats, err := r.run(cmd.Context())
	if stats != nil {
		printSummary(cmd.OutOrStdout(), stats)
	}
	return err
}
