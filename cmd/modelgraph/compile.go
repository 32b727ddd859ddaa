package main

import (
	"fmt"

	"github.com/aretw0/modelgraph/pkg/compiler"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a graph file into the training payload",
	Long: `Reads a graph file and prints the canonical JSON payload the training service expects.
The fingerprint (idempotency key) is printed to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		g, meta, err := readGraph(cmd, cfg)
		if err != nil {
			return err
		}

		req := compiler.Compile(g, meta)
		payload, err := compiler.Marshal(req)
		if err != nil {
			return err
		}
		fp, err := compiler.Fingerprint(req)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		fmt.Fprintf(cmd.ErrOrStderr(), "fingerprint: %s\n", fp)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
	addGraphFlags(compileCmd)
}
