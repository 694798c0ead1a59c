package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/rudi-cli/rudi/internal/manifest"
	"github.com/rudi-cli/rudi/internal/rpaths"
	"github.com/spf13/cobra"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Inspect and render installed prompt templates",
}

var promptShowCmd = &cobra.Command{
	Use:   "show <name> [var=value...]",
	Short: "Render an installed prompt template, substituting any given variables",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps()
		if err != nil {
			return err
		}
		installDir := d.paths.InstallDir(rpaths.KindPrompt, args[0])
		manifestPath := filepath.Join(installDir, "prompt.yaml")
		if _, err := os.Stat(manifestPath); err != nil {
			manifestPath = filepath.Join(installDir, "manifest.yaml")
		}
		m, err := manifest.ParsePromptFile(manifestPath)
		if err != nil {
			return fmt.Errorf("reading prompt %s: %w", args[0], err)
		}

		template := m.Template
		if template == "" {
			data, err := os.ReadFile(filepath.Join(installDir, "prompt.md"))
			if err != nil {
				return fmt.Errorf("reading prompt.md: %w", err)
			}
			template = string(data)
		}

		vars := map[string]string{}
		for _, v := range m.Variables {
			if v.Default != "" {
				vars[v.Name] = v.Default
			}
		}
		for _, kv := range args[1:] {
			name, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid var %q, want name=value", kv)
			}
			vars[name] = value
		}

		rendered := manifest.RenderTemplate(template, vars)
		fmt.Fprintln(os.Stdout, renderMarkdown(rendered))
		return nil
	},
}

// renderMarkdown applies glamour's auto-detected terminal style when stdout
// is a real terminal, matching the teacher's own lazily-built TermRenderer in
// internal/tui/app.go; plain templates pass straight through so piped output
// stays script-friendly.
func renderMarkdown(text string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return text
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

func init() {
	promptCmd.AddCommand(promptShowCmd)
	rootCmd.AddCommand(promptCmd)
}
