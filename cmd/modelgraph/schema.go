package main

import (
	"fmt"

	"github.com/aretw0/modelgraph/pkg/graph"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of graph files",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := graph.MarshalDocumentSchema()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
