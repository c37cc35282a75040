package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go-sniper/builder"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List the scan modes and the options each one accepts",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODE\tLABEL\tOPTIONS\tDESCRIPTION")
		for _, m := range builder.Modes() {
			opts := make([]string, 0, len(m.Fields))
			for _, f := range m.Fields {
				opts = append(opts, string(f))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Value, m.Label, strings.Join(opts, ","), m.Description)
		}
		return w.Flush()
	},
}
