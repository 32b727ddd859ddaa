package main

import (
	"fmt"

	"github.com/aretw0/modelgraph/internal/config"
	"github.com/aretw0/modelgraph/pkg/domain"
	"github.com/aretw0/modelgraph/pkg/graph"
	"github.com/spf13/cobra"
)

// addGraphFlags registers the flags shared by commands reading a graph file.
func addGraphFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Graph file (YAML or JSON); - reads stdin")
	cmd.Flags().String("model-id", "", "Override the model ID of the file")
	cmd.Flags().String("dataset", "", "Override the dataset of the file")
	_ = cmd.MarkFlagRequired("file")
}

// readGraph loads the graph file named by --file. Metadata missing from the file
// falls back to the configured training defaults; flags win over both.
func readGraph(cmd *cobra.Command, cfg *config.Config) (domain.Graph, domain.Metadata, error) {
	path, _ := cmd.Flags().GetString("file")

	var doc graph.Document
	var err error
	if path == "-" {
		doc, err = graph.DecodeDocument(cmd.InOrStdin())
	} else {
		doc, err = graph.LoadDocument(path)
	}
	if err != nil {
		return domain.Graph{}, domain.Metadata{}, err
	}

	g, err := doc.Graph()
	if err != nil {
		return domain.Graph{}, domain.Metadata{}, fmt.Errorf("%s: %w", path, err)
	}

	meta := doc.Metadata()
	if meta.ModelID == "" {
		meta.ModelID = cfg.Training.ModelID
	}
	if meta.Dataset == "" {
		meta.Dataset = cfg.Training.Dataset
	}
	if v, _ := cmd.Flags().GetString("model-id"); v != "" {
		meta.ModelID = v
	}
	if v, _ := cmd.Flags().GetString("dataset"); v != "" {
		meta.Dataset = v
	}
	return g, meta, nil
}
