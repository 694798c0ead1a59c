package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rudi-cli/rudi/internal/sessiondb"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Import and search historical agent conversation transcripts",
}

var sessionImportCmd = &cobra.Command{
	Use:   "import <claude|codex|gemini> <path>",
	Short: "Import a provider's transcripts into the local session database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		db, err := d.openSessionDB()
		if err != nil {
			return err
		}
		defer db.Close()

		skipExisting, _ := cmd.Flags().GetBool("skip-existing")
		inferTitles, _ := cmd.Flags().GetBool("infer-titles")
		opts := sessiondb.ImportOptions{SkipExisting: skipExisting, SkipDead: true, InferTitles: inferTitles}

		var result sessiondb.ImportResult
		switch args[0] {
		case "claude":
			result, err = db.ImportClaudeProject(args[1], opts)
		case "codex":
			result, err = db.ImportCodexSessions(args[1], opts)
		case "gemini":
			result, err = db.ImportGeminiSessions(args[1], opts)
		default:
			return fmt.Errorf("unknown provider %q (want claude, codex, or gemini)", args[0])
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Imported %d session(s), %d turn(s); skipped %d\n",
			result.SessionsImported, result.TurnsImported, result.SessionsSkipped)
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", e)
		}
		return nil
	},
}

var sessionSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search imported session turns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		db, err := d.openSessionDB()
		if err != nil {
			return err
		}
		defer db.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		hits, err := db.Search(args[0], limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tTURN\tSNIPPET")
		for _, h := range hits {
			snippet := h.UserSnippet
			if snippet == "" {
				snippet = h.AssistantSnippet
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", h.SessionID, h.TurnNumber, snippet)
		}
		return w.Flush()
	},
}

func init() {
	sessionImportCmd.Flags().Bool("skip-existing", true, "Skip sessions already present in the database")
	sessionImportCmd.Flags().Bool("infer-titles", true, "Infer a session title from its first user turn")
	sessionSearchCmd.Flags().Int("limit", 20, "Maximum number of results")
	sessionCmd.AddCommand(sessionImportCmd, sessionSearchCmd)
	rootCmd.AddCommand(sessionCmd)
}
