package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Reinstall a package (or every installed package) at its latest version",
	Long: `Update is semantically install(id, {force:true}). With no id, every
currently installed package is updated in turn; failures are reported
per-package without aborting the batch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			results, err := d.inst.Update(context.Background(), args[0])
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintf(os.Stdout, "Updated: %s\n", r.ID)
			}
			return nil
		}

		results, err := d.inst.UpdateAll(context.Background())
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Success {
				fmt.Fprintf(os.Stdout, "Updated: %s\n", r.ID)
				continue
			}
			fmt.Fprintf(os.Stderr, "Failed: %s: %s\n", r.ID, r.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
