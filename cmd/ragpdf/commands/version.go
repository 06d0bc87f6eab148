package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragpdf-go/internal/version"
)

// NewVersionCmd constructs the `ragpdf version` subcommand.
// It prints the binary version, git commit, and build date injected at
// build time via -ldflags. Falls back to "dev"/"unknown" for local builds.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ragpdf version, git commit, and build date",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
