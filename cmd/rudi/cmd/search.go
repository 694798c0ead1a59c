package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the registry index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("kind")

		idx, err := d.client.Index(context.Background(), false)
		if err != nil {
			return err
		}
		hits := d.client.Search(idx, args[0], kind)

		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVERSION\tDESCRIPTION")
		for _, h := range hits {
			fmt.Fprintf(w, "%s\t%s\t%s\n", h.Descriptor.ID, h.Descriptor.Version, strings.TrimSpace(h.Descriptor.Description))
		}
		return w.Flush()
	},
}

func init() {
	searchCmd.Flags().String("kind", "", "Restrict results to one kind (stack|prompt|runtime|binary|agent)")
	rootCmd.AddCommand(searchCmd)
}
