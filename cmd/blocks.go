package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewBlocksCmd creates the blocks command group.
func NewBlocksCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Manage the saved block library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newBlocksListCmd(open))
	cmd.AddCommand(newBlocksImportCmd(open))
	cmd.AddCommand(newBlocksExportCmd(open))
	cmd.AddCommand(newBlocksDeleteCmd(open))
	return cmd
}

func newBlocksListCmd(open opener) *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List saved blocks",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			blocks, err := a.Blocks.ListBlocks()
			if err != nil {
				return err
			}
			if jsonMode {
				return writeJSON(cmd, blocks)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tNODES\tUPDATED")
			for _, b := range blocks {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b.ID, b.Name, len(b.Data), b.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")
	return cmd
}

func newBlocksImportCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:          "import <file>...",
		Short:        "Import block files into the library",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, path := range args {
				b, err := a.Blocks.ImportFile(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%s)\n", b.ID, b.Name)
			}
			return nil
		},
	}
}

func newBlocksExportCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:          "export <block-id> <file>",
		Short:        "Write a block to a file",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Blocks.ExportFile(args[0], args[1])
		},
	}
}

func newBlocksDeleteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:          "delete <block-id>",
		Short:        "Delete a saved block",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Blocks.DeleteBlock(cmd.Context(), args[0])
		},
	}
}
