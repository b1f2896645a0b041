package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type componentInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Canvas      bool     `json:"canvas"`
	Slots       []string `json:"slots,omitempty"`
	Props       []string `json:"props,omitempty"`
}

// NewComponentsCmd creates the components subcommand.
func NewComponentsCmd(open opener) *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:          "components",
		Short:        "List the registered component catalog",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var infos []componentInfo
			for _, c := range a.Resolver.Components() {
				info := componentInfo{
					Name:        c.Name,
					DisplayName: c.DisplayName,
					Canvas:      c.CanAcceptChildren,
					Props:       c.DefaultProps.Keys(),
				}
				for slot, typ := range c.Slots {
					info.Slots = append(info.Slots, slot+"="+typ)
				}
				sort.Strings(info.Slots)
				infos = append(infos, info)
			}

			if jsonMode {
				return writeJSON(cmd, infos)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCANVAS\tSLOTS\tPROPS")
			for _, c := range infos {
				fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", c.Name, c.Canvas, strings.Join(c.Slots, ","), strings.Join(c.Props, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")
	return cmd
}
