package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/4thel00z/contexthub/internal"
	"github.com/spf13/cobra"
)

func NewSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Summarize new commits into the context ledger",
		Long: `Process every commit in the range that has not been stored yet, oldest
first, passing each summary on to the next commit's prompt.

Without flags the last context.default_commit_range commits are considered.
A failing commit aborts the run unless --best-effort is set; re-running
resumes after the last stored commit.`,
		RunE: makeSyncRunner(a),
	}

	cmd.Flags().String("from", "", "Sync commits after this ref (exclusive) up to HEAD")
	cmd.Flags().Int("last", 0, "Sync the last N commits")
	cmd.Flags().Bool("best-effort", false, "Skip commits that fail instead of aborting")
	cmd.MarkFlagsMutuallyExclusive("from", "last")
	return cmd
}

func makeSyncRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		from, _ := cmd.Flags().GetString("from")
		last, _ := cmd.Flags().GetInt("last")
		bestEffort, _ := cmd.Flags().GetBool("best-effort")

		ws, err := workspaceFor(cmd)
		if err != nil {
			return err
		}

		s, err := a.openSession(cmd.Context(), ws, internal.SessionOptions{})
		if err != nil {
			return err
		}
		defer s.Close()

		uc, err := s.SyncUseCase()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		progress := progressPrinter(w)
		if jsonOutput(cmd) {
			progress = nil
		}
		report, err := uc.Execute(cmd.Context(), internal.SyncInput{
			From:       from,
			Last:       last,
			BestEffort: bestEffort || s.Config.BestEffort(),
			Progress:   progress,
		})
		if report != nil && !jsonOutput(cmd) {
			printSyncReport(w, report)
		}
		if err != nil {
			return explainSyncError(cmd.Context(), err, report, s.Ledger)
		}
		if jsonOutput(cmd) {
			return writeJSON(w, newSyncReportJSON(report))
		}
		return nil
	}
}

// progressPrinter prints one line per commit outcome.
func progressPrinter(w io.Writer) func(internal.CommitEvent) {
	return func(ev internal.CommitEvent) {
		switch ev.State {
		case internal.StateSkipped:
			dimColor.Fprintf(w, "  - %s %s (already stored)\n", internal.ShortHash(ev.Hash), ev.Subject)
		case internal.StateStored:
			note := ""
			if ev.Truncated {
				note = warnColor.Sprint(" (diff truncated)")
			}
			fmt.Fprintf(w, "  %s [%d/%d] %s %s%s\n", mark(true), ev.Index, ev.Total,
				internal.ShortHash(ev.Hash), ev.Subject, note)
		case internal.StateFailed:
			fmt.Fprintf(w, "  %s [%d/%d] %s %s: %v\n", mark(false), ev.Index, ev.Total,
				internal.ShortHash(ev.Hash), ev.Subject, ev.Err)
		}
	}
}

func printSyncReport(w io.Writer, r *internal.SyncReport) {
	fmt.Fprintln(w)
	if r.Candidates == 0 {
		dimColor.Fprintln(w, "No commits in range.")
		return
	}
	fmt.Fprintf(w, "Stored %d, skipped %d, failed %d, truncated %d",
		r.Stored, r.Skipped, len(r.Failed), r.Truncated)
	if r.Purged > 0 {
		fmt.Fprintf(w, ", purged %d expired", r.Purged)
	}
	fmt.Fprintln(w)
	if r.Stored == 0 && len(r.Failed) == 0 && r.AbortedAt == "" {
		successColor.Fprintln(w, "Already up to date.")
	}
}

// explainSyncError adds the resume point and fixes for common failures. When
// the run stored nothing the resume point is the newest ledger entry.
func explainSyncError(ctx context.Context, err error, r *internal.SyncReport, ledger *internal.Ledger) error {
	var unavailable *internal.ModelUnavailableError
	if errors.As(err, &unavailable) {
		return fmt.Errorf("%w\nStart the model server (ollama serve) or point model.endpoint elsewhere: contexthub config set-url URL", err)
	}
	if r == nil || r.AbortedAt == "" {
		return err
	}
	resume := "no commit stored yet"
	if r.LastStored != "" {
		resume = "last stored commit: " + internal.ShortHash(r.LastStored)
	} else if last, lerr := ledger.LastProcessed(ctx); lerr == nil && last != nil {
		resume = "last stored commit: " + internal.ShortHash(last.CommitHash)
	}
	return fmt.Errorf("sync aborted at %s (%s); re-run contexthub sync to resume: %w",
		internal.ShortHash(r.AbortedAt), resume, err)
}

type syncFailureJSON struct {
	Hash  string `json:"hash"`
	State string `json:"state"`
	Error string `json:"error"`
}

type syncReportJSON struct {
	RunID      string            `json:"run_id"`
	Candidates int               `json:"candidates"`
	Skipped    int               `json:"skipped"`
	Stored     int               `json:"stored"`
	Truncated  int               `json:"truncated"`
	Purged     int64             `json:"purged"`
	Failed     []syncFailureJSON `json:"failed"`
	LastStored string            `json:"last_stored,omitempty"`
}

func newSyncReportJSON(r *internal.SyncReport) syncReportJSON {
	out := syncReportJSON{
		RunID:      r.RunID,
		Candidates: r.Candidates,
		Skipped:    r.Skipped,
		Stored:     r.Stored,
		Truncated:  r.Truncated,
		Purged:     r.Purged,
		Failed:     []syncFailureJSON{},
		LastStored: r.LastStored,
	}
	for _, f := range r.Failed {
		out.Failed = append(out.Failed, syncFailureJSON{Hash: f.Hash, State: f.State.String(), Error: f.Err.Error()})
	}
	return out
}
