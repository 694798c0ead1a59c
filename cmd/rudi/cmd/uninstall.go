package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <id>",
	Short: "Remove an installed package",
	Long: `Uninstall removes id's install directory and lockfile. For a stack, it
also unregisters its MCP entry from every installed agent and clears its
config-store record before the files are removed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		if err := d.orch.Uninstall(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Uninstalled: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
