package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	backend    string
	fixture    string
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "reaper",
	Short: "Delete cloud resources whose lifetime tag has run out",
	Long: `Reaper walks every resource group in a subscription and deletes the
resources whose lifetime tag says they have outlived their purpose.

A lifetime tag is a list of stanzas such as "2d 12h" or "1mo". Units:
  • y   years (365.25 days)
  • mo  months (30.44 days)
  • d   days
  • h   hours
  • m   minutes`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.pkl, .yaml or .yml); defaults to $REAPER_CONFIG")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Cloud backend: "+strings.Join(newRegistry().Names(), ", "))
	rootCmd.PersistentFlags().StringVar(&fixture, "fixture", "", "Inventory file for the memory backend")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Report what would be deleted without deleting it")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(lifetimeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
