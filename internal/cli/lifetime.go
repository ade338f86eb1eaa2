package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/picklr-io/reaper/internal/lifetime"
)

var lifetimeCreated string

var lifetimeCmd = &cobra.Command{
	Use:   "lifetime TAG",
	Short: "Show how a lifetime tag is interpreted",
	Long: `Parses a lifetime tag value and prints the stanzas that were
recognized, the ones that were ignored and the resulting length.

With --created, also prints when a resource created at that time expires.`,
	Example: `  reaper lifetime "1y 2mo"
  reaper lifetime 30m --created 2023-09-14T11:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runLifetime,
}

func init() {
	lifetimeCmd.Flags().StringVar(&lifetimeCreated, "created", "", "Creation time (RFC 3339) to compute the expiry from")
}

func runLifetime(cmd *cobra.Command, args []string) error {
	spec := lifetime.Parse(args[0])
	out := cmd.OutOrStdout()

	if spec.Empty() {
		fmt.Fprintln(out, "stanzas:  (none recognized)")
	} else {
		fmt.Fprintf(out, "stanzas:  %s\n", spec)
	}
	if len(spec.Ignored) > 0 {
		fmt.Fprintf(out, "ignored:  %s\n", strings.Join(spec.Ignored, " "))
	}
	fmt.Fprintf(out, "minutes:  %g\n", spec.Minutes())
	fmt.Fprintf(out, "duration: %s\n", spec.Duration())

	if lifetimeCreated == "" {
		return nil
	}
	created, err := time.Parse(time.RFC3339, lifetimeCreated)
	if err != nil {
		return fmt.Errorf("invalid --created time %q: %w", lifetimeCreated, err)
	}
	fmt.Fprintf(out, "expires:  %s\n", spec.Expiry(created).Format(time.RFC3339))
	return nil
}
