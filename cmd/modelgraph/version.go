package main

import (
	"fmt"

	"github.com/aretw0/modelgraph"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of modelgraph",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "modelgraph version %s\n", modelgraph.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
