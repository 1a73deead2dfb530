package main

import (
	"fmt"

	"github.com/4thel00z/contexthub/internal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the workspace config",
		Long:  `Show or change .contexthub/config.yaml.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd("set-model", "Set the model name", "MODEL", func(v string) internal.UpdateConfigInput {
			return internal.UpdateConfigInput{Model: v}
		}),
		newConfigSetCmd("set-url", "Set the model endpoint URL", "URL", func(v string) internal.UpdateConfigInput {
			return internal.UpdateConfigInput{Endpoint: v}
		}),
		newConfigSetCmd("set-provider", "Set the model provider (ollama|openai|anthropic|openrouter)", "PROVIDER", func(v string) internal.UpdateConfigInput {
			return internal.UpdateConfigInput{Provider: v}
		}),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := workspaceFor(cmd)
			if err != nil {
				return err
			}
			if err := ws.RequireInitialized(); err != nil {
				return err
			}
			cfg, err := internal.LoadConfig(ws)
			if err != nil {
				return err
			}
			if cfg.Model.APIKey != "" {
				cfg.Model.APIKey = "********"
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			dimColor.Fprintf(cmd.OutOrStdout(), "# %s\n", ws.ConfigPath())
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigSetCmd(use, short, arg string, input func(string) internal.UpdateConfigInput) *cobra.Command {
	return &cobra.Command{
		Use:   use + " " + arg,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspaceFor(cmd)
			if err != nil {
				return err
			}
			cfg, err := internal.NewUpdateConfigUseCase(ws).Execute(cmd.Context(), input(args[0]))
			if err != nil {
				return err
			}
			successColor.Fprintf(cmd.OutOrStdout(), "Model: %s (%s) at %s\n",
				cfg.Model.Model, cfg.Model.Provider, cfg.Model.Endpoint)
			return nil
		},
	}
}
