package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdtanrikulu/dnssec-oracle/util"
)

// NewVersionCommand creates new command instance
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Args:  cobra.NoArgs,
		Short: "Print the version number of dnssec-oracle",
		Run:   printVersion,
	}
}

func printVersion(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "dnssec-oracle")
	fmt.Fprintf(out, "Version: %s\n", util.Version)
	fmt.Fprintf(out, "Build time: %s\n", util.BuildTime)
}
