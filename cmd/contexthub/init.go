package main

import (
	"fmt"

	"github.com/4thel00z/contexthub/internal"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize contexthub in this repository",
		Long: `Create the .contexthub directory with its SQLite ledger, log directory and
default config, and add .contexthub/ to .gitignore.`,
		RunE: runInit,
	}

	cmd.Flags().String("model", "", "Model name to store in the config")
	cmd.Flags().String("endpoint", "", "Model endpoint to store in the config")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	model, _ := cmd.Flags().GetString("model")
	endpoint, _ := cmd.Flags().GetString("endpoint")

	ws, err := workspaceFor(cmd)
	if err != nil {
		return err
	}

	out, err := internal.NewInitUseCase(ws).Execute(cmd.Context(), internal.InitInput{
		Model:    model,
		Endpoint: endpoint,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	successColor.Fprintf(w, "Initialized contexthub at %s\n", out.Dir)
	if out.GitignoreUpdated {
		dimColor.Fprintln(w, "Added .contexthub/ to .gitignore")
	}
	fmt.Fprintf(w, "  Model:    %s\n", out.Config.Model.Model)
	fmt.Fprintf(w, "  Endpoint: %s\n", out.Config.Model.Endpoint)
	fmt.Fprintf(w, "  TTL:      %d days\n", out.Config.Context.TTLDays)
	fmt.Fprintln(w)
	dimColor.Fprintln(w, "Next: contexthub sync, or contexthub hook install to sync after every commit")
	return nil
}
