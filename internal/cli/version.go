package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkoosis/kind2run/internal/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// Version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kind2run version %s\n", version.Version)
			fmt.Fprintf(out, "Commit: %s\n", version.CommitHash)
			fmt.Fprintf(out, "Built: %s\n", version.BuildDate)
		},
	}
}
