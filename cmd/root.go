// Package cmd implements the CLI surface: serve, ask, and version.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wearcast",
	Short: "Weather, clothing, and activity assistant",
	Long: `Wearcast answers questions about current weather and recommends
clothing and activities for a location, backed by a knowledge base and
live weather data. Run "wearcast serve" to start the HTTP API or
"wearcast ask" for a one-shot question.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
