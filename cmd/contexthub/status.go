package main

import (
	"fmt"

	"github.com/4thel00z/contexthub/internal"
	"github.com/spf13/cobra"
)

func NewStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync progress and model availability",
		Long: `Show how many commits the repository has, how many are stored, the last
processed commit, live TTL memory and whether the model endpoint answers.
The ledger is opened read-only, so status works while a sync is running.`,
		RunE: makeStatusRunner(a),
	}

	cmd.Flags().Bool("no-probe", false, "Do not contact the model endpoint")
	return cmd
}

type statusJSON struct {
	TotalCommits   int    `json:"total_commits"`
	Stored         int64  `json:"stored"`
	LastProcessed  string `json:"last_processed,omitempty"`
	TTLAlive       int    `json:"ttl_alive"`
	Endpoint       string `json:"endpoint"`
	ModelAvailable *bool  `json:"model_available,omitempty"`
}

func makeStatusRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		noProbe, _ := cmd.Flags().GetBool("no-probe")

		ws, err := workspaceFor(cmd)
		if err != nil {
			return err
		}

		s, err := a.openSession(cmd.Context(), ws, internal.SessionOptions{ReadOnly: true})
		if err != nil {
			return err
		}
		defer s.Close()

		out, err := s.StatusUseCase().Execute(cmd.Context(), internal.StatusInput{SkipProbe: noProbe})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if jsonOutput(cmd) {
			j := statusJSON{
				TotalCommits: out.TotalCommits,
				Stored:       out.Stored,
				TTLAlive:     out.TTLAlive,
				Endpoint:     out.Endpoint,
			}
			if out.LastProcessed != nil {
				j.LastProcessed = out.LastProcessed.CommitHash
			}
			if out.Probed {
				j.ModelAvailable = &out.ModelAvailable
			}
			return writeJSON(w, j)
		}

		titleColor.Fprintln(w, "contexthub status")
		fmt.Fprintf(w, "  Repository:  %s\n", ws.Root)
		fmt.Fprintf(w, "  Commits:     %d\n", out.TotalCommits)
		fmt.Fprintf(w, "  Stored:      %d\n", out.Stored)
		if out.LastProcessed != nil {
			fmt.Fprintf(w, "  Last synced: %s %s\n",
				internal.ShortHash(out.LastProcessed.CommitHash),
				internal.Subject(out.LastProcessed.CommitMessage))
		} else {
			fmt.Fprintln(w, "  Last synced: never")
		}
		fmt.Fprintf(w, "  TTL memory:  %d live (%d day window)\n", out.TTLAlive, s.Config.Context.TTLDays)
		if out.Probed {
			state := "unreachable"
			if out.ModelAvailable {
				state = "reachable"
			}
			fmt.Fprintf(w, "  Model:       %s %s at %s (%s)\n", mark(out.ModelAvailable), s.Config.Model.Model, out.Endpoint, state)
		} else {
			fmt.Fprintf(w, "  Model:       %s at %s (not probed)\n", s.Config.Model.Model, out.Endpoint)
		}
		if pending := out.TotalCommits - int(out.Stored); pending > 0 {
			dimColor.Fprintf(w, "\n%d commit(s) not yet synced. Run contexthub sync.\n", pending)
		}
		return nil
	}
}
