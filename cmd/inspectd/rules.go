package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vbonduro/inspectflow/internal/workflow"
)

func rulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the inspection transition table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FROM\tTO\tWHO")
			for _, r := range workflow.Rules {
				who := make([]string, len(r.Parties))
				for i, p := range r.Parties {
					who[i] = string(p)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.From, r.To, strings.Join(who, ", "))
			}
			return w.Flush()
		},
	}
}
