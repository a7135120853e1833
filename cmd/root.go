// Package cmd contains the scribe CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Scribe generates living API and database documentation",
	Long: `Scribe analyzes .NET controller sources and SQL schemas, then uses a
generative model to produce documentation artifacts: OpenAPI specs, usage
guides, Postman collections, SDK scaffolds, ER diagrams, and data
dictionaries. Artifacts are cached by content, versioned per project, and
searchable by meaning.

Run "scribe serve" to start the HTTP API.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
