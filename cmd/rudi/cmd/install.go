package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rudi-cli/rudi/internal/installer"
	"github.com/rudi-cli/rudi/internal/orchestrate"
	"github.com/rudi-cli/rudi/internal/tui"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <id>",
	Short: "Install a runtime, binary, stack, prompt, or agent",
	Long: `Install resolves id's dependency tree against the registry, computes an
install order, and installs every not-yet-installed package in that order.

id may be bare ("ripgrep") or kind-prefixed ("binary:ripgrep"); a bare id
is treated as a stack.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		quiet, _ := cmd.Flags().GetBool("quiet")

		var result *orchestrate.Result
		runInstall := func(ctx context.Context, report installer.ProgressFunc) error {
			var err error
			result, err = d.orch.InstallPackage(ctx, args[0], installer.Options{Force: force, OnProgress: report})
			return err
		}

		if quiet {
			err = runInstall(context.Background(), printProgress)
		} else {
			err = tui.RunInstallProgress(context.Background(), runInstall)
		}
		if err != nil {
			return err
		}

		for _, r := range result.Installs {
			fmt.Fprintf(os.Stdout, "Installed: %s\n", r.ID)
		}
		if result.IndexError != "" {
			fmt.Fprintf(os.Stderr, "Warning: tool indexing failed: %s\n", result.IndexError)
		} else if len(result.Tools) > 0 {
			fmt.Fprintf(os.Stdout, "Discovered %d tool(s)\n", len(result.Tools))
		}
		for agentID, reg := range result.Registrations {
			if reg.Success {
				fmt.Fprintf(os.Stdout, "Registered with %s\n", agentID)
			}
		}
		return nil
	},
}

func printProgress(e installer.Event) {
	switch e.Phase {
	case installer.PhaseResolving:
		fmt.Fprintf(os.Stdout, "Resolving %s...\n", e.Package)
	case installer.PhaseDownloading:
		fmt.Fprintf(os.Stdout, "Downloading %s...\n", e.Package)
	case installer.PhaseExtracting:
		fmt.Fprintf(os.Stdout, "Extracting %s...\n", e.Package)
	case installer.PhaseInstalling:
		fmt.Fprintf(os.Stdout, "[%d/%d] Installing %s...\n", e.Current, e.Total, e.Package)
	case installer.PhaseLockfile:
		// Quiet: lockfile writes are an implementation detail.
	case installer.PhaseInstalled:
		fmt.Fprintf(os.Stdout, "[%d/%d] Installed %s\n", e.Current, e.Total, e.Package)
	}
}

func init() {
	installCmd.Flags().Bool("force", false, "Reinstall even if already installed")
	installCmd.Flags().Bool("quiet", false, "Print plain-text progress lines instead of the interactive spinner")
	rootCmd.AddCommand(installCmd)
}
