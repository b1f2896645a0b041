package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sitebuilder/internal/service"
)

// NewPublishCmd creates the publish subcommand.
func NewPublishCmd(open opener) *cobra.Command {
	var (
		siteID   string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:          "publish [page-id...]",
		Short:        "Transpile pages and write their artifacts",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (siteID == "") == (len(args) == 0) {
				return fmt.Errorf("pass page ids or --site, not both")
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			var results []service.PublishResult
			if siteID != "" {
				results, err = a.Publish.PublishAll(ctx, siteID)
			} else {
				for _, id := range args {
					res, perr := a.Publish.Publish(ctx, id)
					if perr != nil {
						err = fmt.Errorf("publish %s: %w", id, perr)
						break
					}
					results = append(results, *res)
				}
			}

			if jsonMode {
				if werr := writeJSON(cmd, results); werr != nil {
					return werr
				}
				return err
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.PageID, r.StaticPath, r.ShellPath)
				if r.Diagnostics {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: output carries diagnostics\n", r.PageID)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&siteID, "site", "", "publish every page of a site")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output results as JSON")
	return cmd
}
