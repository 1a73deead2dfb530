package main

import (
	"fmt"
	"strings"

	"github.com/4thel00z/contexthub/internal"
	"github.com/spf13/cobra"
)

func NewContextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show or export the stored commit context",
		Long: `List stored summaries, newest first, or export them.

Formats: markdown and json print to stdout; claude writes CLAUDE.md, cursor
writes .cursorrules and copilot writes .github/copilot-instructions.md.`,
		RunE: makeContextRunner(a),
	}

	cmd.Flags().IntP("limit", "n", internal.DefaultContextListLimit, "Number of entries to show")
	cmd.Flags().String("since", "", "Only entries from this stored commit onwards")
	cmd.Flags().StringP("export", "e", "", "Export format (markdown|json|claude|cursor|copilot)")
	return cmd
}

func makeContextRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetString("since")
		export, _ := cmd.Flags().GetString("export")

		var format internal.ExportFormat
		if export != "" {
			f, err := internal.ParseExportFormat(export)
			if err != nil {
				return err
			}
			format = f
		}

		ws, err := workspaceFor(cmd)
		if err != nil {
			return err
		}

		s, err := a.openSession(cmd.Context(), ws, internal.SessionOptions{ReadOnly: true, WithoutModel: true})
		if err != nil {
			return err
		}
		defer s.Close()

		w := cmd.OutOrStdout()

		if format == "" && jsonOutput(cmd) {
			format = internal.ExportJSON
		}
		if format != "" {
			out, err := s.ExportContextUseCase().Execute(cmd.Context(), internal.ExportContextInput{
				Format: format,
				Since:  since,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if out.Path == "" {
				fmt.Fprintln(w, out.Content)
				return nil
			}
			successColor.Fprintf(w, "Exported %d entries to %s\n", out.Entries, out.Path)
			return nil
		}

		out, err := s.ListContextUseCase().Execute(cmd.Context(), internal.ListContextInput{
			Limit: limit,
			Since: since,
		})
		if err != nil {
			return err
		}

		if len(out.Entries) == 0 {
			fmt.Fprintln(w, "No context stored. Run contexthub sync first.")
			return nil
		}

		titleColor.Fprintf(w, "Global context (%d of %d entries)\n\n", len(out.Entries), out.Total)
		for i := range out.Entries {
			e := &out.Entries[i]
			fmt.Fprintf(w, "┌─ %s %s\n", warnColor.Sprint(internal.ShortHash(e.CommitHash)), internal.Subject(e.CommitMessage))
			fmt.Fprintf(w, "│ %s\n", e.ContextSummary)
			if files := e.Files(); len(files) > 0 {
				dimColor.Fprintf(w, "│ Files: %s\n", strings.Join(files, ", "))
			}
			if ec, err := e.Extracted(); err == nil && ec.Impact != "" {
				dimColor.Fprintf(w, "│ Impact: %s\n", ec.Impact)
			}
			fmt.Fprintf(w, "└─ %s\n\n", e.CommitDate.Local().Format("2006-01-02 15:04"))
		}
		return nil
	}
}
