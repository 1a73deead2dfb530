package main

import (
	"fmt"
	"os"

	"github.com/4thel00z/contexthub/internal"
	"github.com/spf13/cobra"
)

var builtins = map[string]bool{
	"init": true, "sync": true, "status": true, "context": true, "memory": true,
	"config": true, "hook": true, "doctor": true, "watch": true,
	"help": true, "completion": true,
}

func isBuiltin(name string) bool {
	return builtins[name]
}

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "contexthub",
		Short: "Commit-by-commit context memory for your repository",
		Long: `contexthub turns each git commit into a structured summary produced by a
language model, chained to the previous one, and keeps them in a local
SQLite ledger under .contexthub/.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	setHelpWithExternals(rootCmd)

	if a != nil {
		addSubcommands(rootCmd, a)
	}

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("dir", "C", "", "Run as if started in this directory")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format where supported")
}

func addSubcommands(root *cobra.Command, a *app) {
	root.AddCommand(
		NewInitCmd(),
		NewSyncCmd(a),
		NewStatusCmd(a),
		NewContextCmd(a),
		NewMemoryCmd(a),
		NewConfigCmd(),
		NewHookCmd(),
		NewDoctorCmd(),
		NewWatchCmd(a),
	)
}

// workspaceFor resolves the repository the command operates on.
func workspaceFor(cmd *cobra.Command) (internal.Workspace, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return internal.Workspace{}, fmt.Errorf("get working directory: %w", err)
		}
		dir = cwd
	}
	return internal.FindWorkspace(dir)
}

func setHelpWithExternals(cmd *cobra.Command) {
	defaultHelp := cmd.HelpFunc()

	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		defaultHelp(c, args)
		if c == c.Root() {
			printExternalCommands(c)
		}
	})
}

func printExternalCommands(cmd *cobra.Command) {
	externals := listExternalCommands()
	if len(externals) == 0 {
		return
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nExternal commands (contexthub-*):")
	for _, name := range externals {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
	}
}
