// Package cli implements the mediator command line.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "mediator",
	Short:        "EldersFive mediation service",
	Long:         "Runs the EldersFive mediator: an HTTP service that reads a room's conversation, asks an LLM for a structured judgement and stores it as a mediator message.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
