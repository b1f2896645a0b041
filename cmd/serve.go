package cmd

import (
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(open opener) *cobra.Command {
	var (
		addr     string
		watch    bool
		schedule bool
	)

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Serve the HTTP API, block library watcher and publish schedule",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("addr") {
				a.Config.HTTP.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				a.Config.Blocks.Watch = watch
			}
			if cmd.Flags().Changed("schedule") {
				a.Config.Publish.Schedule = schedule
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()
			return a.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&watch, "watch", false, "watch the block library directory")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "run scheduled publishes")
	return cmd
}
