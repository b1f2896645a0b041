// Package cmd implements the sitebuilder CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sitebuilder/internal/app"
	"sitebuilder/internal/config"
)

// NewRootCmd creates the root sitebuilder command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "sitebuilder",
		Short:         "sitebuilder - page builder documents, block library and publishing",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/sitebuilder/config.yaml)")

	open := func(cmd *cobra.Command) (*app.App, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return app.Open(cfg)
	}

	root.AddCommand(NewServeCmd(open))
	root.AddCommand(NewMCPCmd(open))
	root.AddCommand(NewPublishCmd(open))
	root.AddCommand(NewBlocksCmd(open))
	root.AddCommand(NewComponentsCmd(open))
	return root
}

// opener builds the application for a command invocation.
type opener func(cmd *cobra.Command) (*app.App, error)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
