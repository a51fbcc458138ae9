package main

import (
	"github.com/spf13/cobra"
)

var (
	// Set via ldflags at build time
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printf(cmd, "rulemapper %s\n", version)
			printf(cmd, "  commit:  %s\n", commit)
			printf(cmd, "  built:   %s\n", buildDate)
		},
	}
}
