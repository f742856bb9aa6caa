package cmd

import (
	"github.com/spf13/cobra"
)

type subCommandGroup string

const (
	subCommandGroupBasic    subCommandGroup = "basic"
	subCommandGroupAdvanced subCommandGroup = "advanced"
)

var rootCmd = &cobra.Command{
	Use:   "repodash",
	Short: "Dashboard for viewing and editing version-controlled files in remote repositories",
	Long: "repodash serves a web dashboard for viewing and editing files stored in GitHub repositories.\n" +
		"Every save is a conditional write gated on the file's current version tag, so concurrent\n" +
		"editors can never silently overwrite each other. Administrators can lock the system,\n" +
		"inspect the audit log and trigger the deploy webhook.",
	SilenceUsage: true,
}

// Execute runs the repodash CLI.
func Execute() error {
	return rootCmd.Execute()
}
