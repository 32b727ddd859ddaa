package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/modelgraph/pkg/catalog"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the node templates of the configured catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cached := catalog.NewCached(catalogSource(cfg), catalog.WithLogger(newLogger(cfg)))
		templates, err := cached.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tLABEL\tTYPE\tCATEGORY")
		for i, t := range templates {
			typ := t.Kind
			if typ == "" {
				typ = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, t.Label, typ, t.Category)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
