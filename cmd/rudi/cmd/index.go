package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the MCP tool inventory for every installed stack",
	Long: `Index spawns every stack currently recorded in the config store, performs
the MCP tools/list handshake, and persists the refreshed tool inventory
back into the config store. Stacks missing required secrets or failing to
spawn are reported individually without aborting the batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		results, err := d.orch.ReindexAll()
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Error != "" {
				fmt.Fprintf(os.Stderr, "%s: %s\n", r.ID, r.Error)
				continue
			}
			fmt.Fprintf(os.Stdout, "%s: %d tool(s)\n", r.ID, len(r.Tools))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
