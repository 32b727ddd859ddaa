package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/modelgraph/pkg/compiler"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Compile a graph file and submit it to the training service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if url, _ := cmd.Flags().GetString("training-url"); url != "" {
			cfg.Training.URL = url
		}
		client := newTrainingClient(cfg, newLogger(cfg))
		if client == nil {
			return errors.New("training URL not configured (use --training-url or MODELGRAPH_TRAINING_URL)")
		}

		g, meta, err := readGraph(cmd, cfg)
		if err != nil {
			return err
		}
		resp, err := client.Submit(cmd.Context(), compiler.Compile(g, meta))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(resp))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	addGraphFlags(submitCmd)
	submitCmd.Flags().String("training-url", "", "Training service base URL (overrides config)")
}
