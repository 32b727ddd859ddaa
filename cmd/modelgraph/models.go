package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/modelgraph/pkg/training"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Query the training service",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the models known to the training service",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := trainingFromFlags(cmd)
		if err != nil {
			return err
		}
		body, err := client.ListModels(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	},
}

var modelsLogsCmd = &cobra.Command{
	Use:   "logs <model-id>",
	Short: "Print the training log of a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := trainingFromFlags(cmd)
		if err != nil {
			return err
		}
		body, err := client.Logs(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	},
}

func trainingFromFlags(cmd *cobra.Command) (*training.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if url, _ := cmd.Flags().GetString("training-url"); url != "" {
		cfg.Training.URL = url
	}
	client := newTrainingClient(cfg, newLogger(cfg))
	if client == nil {
		return nil, errors.New("training URL not configured (use --training-url or MODELGRAPH_TRAINING_URL)")
	}
	return client, nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsLogsCmd)
	modelsCmd.PersistentFlags().String("training-url", "", "Training service base URL (overrides config)")
}
