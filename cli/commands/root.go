// Package commands implements CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rowforge",
		Short: "Bulk table loader",
		Long:  "Rowforge loads rows from JSON input into a SQL table through a declarative mapping spec",
	}

	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewLoadCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}
