package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "rudi",
	Short: "Local package manager and orchestrator for AI-agent tooling",
	Long: `rudi installs and manages runtimes, binaries, stacks (MCP servers),
prompt templates, and agent CLIs under a single user-scoped directory,
registers stacks into the config files of third-party AI-agent clients,
and indexes historical conversation transcripts into a local database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rudi %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
