package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rudi-cli/rudi/internal/configstore"
	"github.com/spf13/cobra"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage secret values declared by installed stacks",
}

var secretsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every declared secret and its configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		cfg, err := d.config.Read()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTACK\tPROVIDER\tCONFIGURED")
		for _, meta := range cfg.Secrets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", meta.Name, meta.Stack, meta.Provider, meta.Configured)
		}
		return w.Flush()
	},
}

var secretsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Store a secret's value in secrets.json and mark it configured",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		if err := d.secrets.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := d.config.UpdateSecretStatus(args[0], true, configstore.ProviderSecretsFile); err != nil {
			return fmt.Errorf("updating config: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Set %s\n", args[0])
		return nil
	},
}

var secretsUnsetCmd = &cobra.Command{
	Use:   "unset <name>",
	Short: "Remove a secret's stored value and mark it unconfigured",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		if err := d.secrets.Delete(args[0]); err != nil {
			return err
		}
		if err := d.config.UpdateSecretStatus(args[0], false, configstore.ProviderSecretsFile); err != nil {
			return fmt.Errorf("updating config: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Unset %s\n", args[0])
		return nil
	},
}

func init() {
	secretsCmd.AddCommand(secretsListCmd, secretsSetCmd, secretsUnsetCmd)
	rootCmd.AddCommand(secretsCmd)
}
