package main

import (
	"fmt"
	"os"

	"github.com/aretw0/modelgraph/internal/presentation/tui"
	"github.com/aretw0/modelgraph/pkg/compiler"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the compiled form of a graph file",
	Long: `Compiles a graph file and renders its nodes, kinds, adjacency and parameters.
Markdown is styled when stdout is a terminal and printed raw otherwise.`,
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
		fp, err := compiler.Fingerprint(req)
		if err != nil {
			return err
		}
		md := tui.CompiledMarkdown(req, fp)

		if plain, _ := cmd.Flags().GetBool("plain"); plain || !isTerminal(os.Stdout) {
			fmt.Fprint(cmd.OutOrStdout(), md)
			return nil
		}
		render, err := tui.NewRenderer()
		if err != nil {
			return err
		}
		out, err := render(md)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addGraphFlags(inspectCmd)
	inspectCmd.Flags().Bool("plain", false, "Print raw markdown even on a terminal")
}
