package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/aretw0/modelgraph/pkg/notes"
	"github.com/spf13/cobra"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Summarize and evaluate notes with the summarization service",
}

var notesSummarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize a text or an audio recording",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := notesFromFlags(cmd)
		if err != nil {
			return err
		}
		text, _ := cmd.Flags().GetString("text")
		audio, _ := cmd.Flags().GetString("audio")

		var summary notes.Summary
		switch {
		case audio != "":
			f, err := os.Open(audio)
			if err != nil {
				return err
			}
			defer f.Close()
			summary, err = client.SummarizeAudio(cmd.Context(), filepath.Base(audio), f)
			if err != nil {
				return err
			}
		default:
			summary, err = client.SummarizeText(cmd.Context(), text)
			if err != nil {
				return err
			}
		}
		return printJSON(cmd, summary)
	},
}

var notesEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a summary against its source text",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := notesFromFlags(cmd)
		if err != nil {
			return err
		}
		text, _ := cmd.Flags().GetString("text")
		summary, _ := cmd.Flags().GetString("summary")
		scores, err := client.Evaluate(cmd.Context(), text, summary)
		if err != nil {
			return err
		}
		return printJSON(cmd, scores)
	},
}

func notesFromFlags(cmd *cobra.Command) (*notes.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if url, _ := cmd.Flags().GetString("notes-url"); url != "" {
		cfg.Notes.URL = url
	}
	if cfg.Notes.URL == "" {
		return nil, errors.New("notes URL not configured (use --notes-url or MODELGRAPH_NOTES_URL)")
	}
	return notes.New(cfg.Notes.URL, notes.WithLogger(newLogger(cfg))), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(notesCmd)
	notesCmd.AddCommand(notesSummarizeCmd, notesEvaluateCmd)
	notesCmd.PersistentFlags().String("notes-url", "", "Summarization service base URL (overrides config)")

	notesSummarizeCmd.Flags().String("text", "", "Text to summarize")
	notesSummarizeCmd.Flags().String("audio", "", "Audio file to transcribe and summarize")
	notesSummarizeCmd.MarkFlagsMutuallyExclusive("text", "audio")
	notesSummarizeCmd.MarkFlagsOneRequired("text", "audio")

	notesEvaluateCmd.Flags().String("text", "", "Source text")
	notesEvaluateCmd.Flags().String("summary", "", "Summary to score")
	_ = notesEvaluateCmd.MarkFlagRequired("text")
	_ = notesEvaluateCmd.MarkFlagRequired("summary")
}
