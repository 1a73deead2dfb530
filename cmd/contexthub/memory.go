package main

import (
	"fmt"

	"github.com/4thel00z/contexthub/internal"
	"github.com/spf13/cobra"
)

func NewMemoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect short-lived memory",
		Long:  `Inspect and manage the TTL memory kept alongside the permanent context.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(NewMemoryTTLCmd(a))
	return cmd
}

func NewMemoryTTLCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ttl",
		Short: "List, clear or resize TTL memory",
		Long: `List live TTL memory entries, newest first.

--clear deletes every TTL entry; permanent context is kept.
--set-ttl changes the window for entries stored from now on.`,
		RunE: makeMemoryTTLRunner(a),
	}

	cmd.Flags().Bool("clear", false, "Delete all TTL memory")
	cmd.Flags().Int("set-ttl", 0, "Set the TTL window in days")
	cmd.MarkFlagsMutuallyExclusive("clear", "set-ttl")
	return cmd
}

func makeMemoryTTLRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		clearAll, _ := cmd.Flags().GetBool("clear")
		days, _ := cmd.Flags().GetInt("set-ttl")

		ws, err := workspaceFor(cmd)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		if cmd.Flags().Changed("set-ttl") {
			cfg, err := internal.NewSetTTLUseCase(ws).Execute(cmd.Context(), internal.SetTTLInput{Days: days})
			if err != nil {
				return err
			}
			successColor.Fprintf(w, "TTL set to %d days\n", cfg.Context.TTLDays)
			return nil
		}

		s, err := a.openSession(cmd.Context(), ws, internal.SessionOptions{ReadOnly: !clearAll, WithoutModel: true})
		if err != nil {
			return err
		}
		defer s.Close()

		if clearAll {
			out, err := s.ClearTTLUseCase().Execute(cmd.Context())
			if err != nil {
				return err
			}
			successColor.Fprintf(w, "TTL memory cleared (%d entries)\n", out.Removed)
			return nil
		}

		out, err := s.ListTTLUseCase().Execute(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return writeJSON(w, out.Entries)
		}
		if len(out.Entries) == 0 {
			fmt.Fprintln(w, "No TTL memory stored.")
			return nil
		}

		titleColor.Fprintf(w, "TTL memory (%d entries)\n\n", len(out.Entries))
		for _, e := range out.Entries {
			fmt.Fprintf(w, "┌─ %s\n", warnColor.Sprint(internal.ShortHash(e.CommitHash)))
			fmt.Fprintf(w, "│ %s\n", e.Content)
			dimColor.Fprintf(w, "│ Expires: %s\n", e.ExpiresAt.Local().Format("2006-01-02 15:04"))
			fmt.Fprintln(w, "└─")
		}
		return nil
	}
}
