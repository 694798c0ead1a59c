package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rudi-cli/rudi/internal/agents"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Inspect and manage third-party AI-agent client registrations",
}

var agentStatusCmd = &cobra.Command{
	Use:   "status [stackID]",
	Short: "Show which agents are installed, and whether a stack is registered in each",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var stackID string
		if len(args) == 1 {
			stackID = args[0]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "AGENT\tINSTALLED\tREGISTERED\tCONFIG PATH")
		for _, s := range agents.GetMcpRegistrationSummary(stackID) {
			fmt.Fprintf(w, "%s\t%t\t%t\t%s\n", s.AgentName, s.Installed, s.Registered, s.ConfigPath)
		}
		return w.Flush()
	},
}

var agentRegisterCmd = &cobra.Command{
	Use:   "register <stackID>",
	Short: "Re-register a stack's MCP entry into every installed agent (or --agents)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		cfg, err := d.config.Read()
		if err != nil {
			return err
		}
		stack, ok := cfg.Stacks[args[0]]
		if !ok {
			return fmt.Errorf("stack %s not found", args[0])
		}

		targets := parseAgentsFlag(cmd)
		env := map[string]string{}
		for _, req := range stack.Secrets {
			if v, ok := d.secrets.Value(req.Name); ok {
				env[req.Name] = v
			}
		}
		if dotenv, derr := agents.ReadEnvFile(filepath.Join(stack.Path, ".env")); derr == nil {
			for k, v := range dotenv {
				if v != "" {
					env[k] = v
				}
			}
		}
		results := agents.RegisterMcpAll(stack.ID, stack.Path, agents.StackManifest{Command: stack.Command}, env, targets)
		return printRegisterResults(results)
	},
}

var agentUnregisterCmd = &cobra.Command{
	Use:   "unregister <stackID>",
	Short: "Remove a stack's MCP entry from every installed agent (or --agents)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targets := parseAgentsFlag(cmd)
		results := agents.UnregisterMcpAll(args[0], targets)
		return printRegisterResults(results)
	},
}

func printRegisterResults(results map[string]agents.RegisterResult) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tRESULT\tDETAIL")
	for id, r := range results {
		switch {
		case r.Error != "":
			fmt.Fprintf(w, "%s\tERROR\t%s\n", id, r.Error)
		case r.Skipped:
			fmt.Fprintf(w, "%s\tSKIPPED\t%s\n", id, r.Reason)
		default:
			fmt.Fprintf(w, "%s\tOK\t%s\n", id, r.ConfigPath)
		}
	}
	return w.Flush()
}

func parseAgentsFlag(cmd *cobra.Command) []string {
	flag, _ := cmd.Flags().GetString("agents")
	if flag == "" {
		return nil
	}
	names := strings.Split(flag, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	return names
}

func init() {
	agentRegisterCmd.Flags().String("agents", "", "Comma-separated agent ids (default: all installed agents)")
	agentUnregisterCmd.Flags().String("agents", "", "Comma-separated agent ids (default: all installed agents)")
	agentCmd.AddCommand(agentStatusCmd, agentRegisterCmd, agentUnregisterCmd)
	rootCmd.AddCommand(agentCmd)
}
