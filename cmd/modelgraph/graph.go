package main

import (
	"fmt"

	"github.com/aretw0/modelgraph/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export a graph file as a Mermaid diagram",
	Long:  `Reads a graph file and outputs a Mermaid flowchart (graph LR) of its nodes and edges.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		g, _, err := readGraph(cmd, cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	addGraphFlags(graphCmd)
}
