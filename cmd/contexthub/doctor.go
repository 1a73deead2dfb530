package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/4thel00z/contexthub/internal"
	"github.com/spf13/cobra"
)

func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that contexthub can run here",
		Long:  `Check the git repository, the model server, the workspace and the database, and print fixes for anything missing.`,
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	ws, err := workspaceFor(cmd)
	var history internal.HistoryRepository
	switch {
	case errors.Is(err, internal.ErrNotGitRepository):
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			cwd, cwdErr := os.Getwd()
			if cwdErr != nil {
				return cwdErr
			}
			dir = cwd
		}
		ws = internal.NewWorkspace(dir)
	case err != nil:
		return err
	default:
		if h, err := internal.OpenGitHistory(ws); err == nil {
			history = h
		}
	}

	cfg, err := internal.LoadConfig(ws)
	if err != nil {
		return err
	}
	var gateway internal.Gateway
	if gw, err := internal.NewGateway(ctx, cfg); err == nil {
		gateway = gw
	}

	out, err := internal.NewDoctorUseCase(ws, history, gateway).Execute(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	titleColor.Fprintln(w, "System health check")
	fmt.Fprintln(w)
	for _, c := range out.Checks {
		fmt.Fprintf(w, "  %s %-24s %s\n", mark(c.OK), c.Name, dimColor.Sprint(c.Detail))
	}

	fmt.Fprintln(w)
	titleColor.Fprintln(w, "Recommendations")
	recs := out.Recommendations()
	if len(recs) == 0 {
		successColor.Fprintln(w, "  All good! No issues found.")
		return nil
	}
	for i, r := range recs {
		fmt.Fprintf(w, "  %d. %s\n", i+1, r)
	}
	return nil
}
