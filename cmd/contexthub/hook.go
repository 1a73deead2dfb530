package main

import (
	"fmt"

	"github.com/4thel00z/contexthub/internal"
	"github.com/spf13/cobra"
)

func NewHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Manage the post-commit hook",
		Long:  `Install or remove the git post-commit hook that runs contexthub sync --last 1 in the background.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(NewInstallCmd(), NewUninstallCmd())
	return cmd
}

func NewInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the post-commit hook",
		Long: `Install a post-commit hook that syncs each new commit. An existing hook
not written by contexthub is left alone unless --force is given, in which
case it is kept as post-commit.bak.`,
		RunE: runInstall,
	}

	cmd.Flags().Bool("force", false, "Replace an existing hook (backs up the original)")
	return cmd
}

func runInstall(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")

	ws, err := workspaceFor(cmd)
	if err != nil {
		return err
	}

	out, err := internal.NewInstallHookUseCase(ws).Execute(cmd.Context(), internal.InstallHookInput{Force: force})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if out.BackedUp != "" {
		warnColor.Fprintf(w, "Backed up existing hook to %s\n", out.BackedUp)
	}
	successColor.Fprintf(w, "Installed post-commit hook at %s\n", out.Path)
	dimColor.Fprintln(w, "Each commit now triggers contexthub sync --last 1 in the background.")
	return nil
}

func NewUninstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the post-commit hook",
		Long:  `Remove the post-commit hook installed by contexthub. Restores any backed-up original hook.`,
		RunE:  runUninstall,
	}

	cmd.Flags().Bool("keep-config", false, "Leave git.hook_enabled untouched in the config")
	return cmd
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	keepConfig, _ := cmd.Flags().GetBool("keep-config")

	ws, err := workspaceFor(cmd)
	if err != nil {
		return err
	}

	out, err := internal.NewUninstallHookUseCase(ws).Execute(cmd.Context(), internal.UninstallHookInput{
		KeepConfig: keepConfig,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch {
	case out.Restored:
		successColor.Fprintln(w, "Uninstalled post-commit hook and restored the previous one")
	case out.Removed:
		successColor.Fprintln(w, "Uninstalled post-commit hook")
	default:
		fmt.Fprintln(w, "No contexthub hook installed")
	}
	return nil
}
