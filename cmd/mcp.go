package cmd

import (
	"github.com/spf13/cobra"
)

// NewMCPCmd creates the mcp subcommand.
func NewMCPCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:          "mcp",
		Short:        "Run the MCP server on stdin/stdout",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.ServeMCP(cmd.Root().Version)
		},
	}
}
