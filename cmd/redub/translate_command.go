package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/language"
	"redub/internal/pipeline"
)

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var (
		fromLang      string
		toLang        string
		voices        []string
		fixTranscript bool
		outputDir     string
	)

	cmd := &cobra.Command{
		Use:   "translate <audio-file>",
		Short: "Run the full dubbing pipeline on an audio file",
		Long: `Transcribe an audio file, translate the subtitle document, and synthesize
a dubbed track with one voice per detected speaker. All intermediate files
live in a staging session that is removed when the run finishes, whatever
the outcome; only the exported results survive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			from := fromLang
			if from == "" {
				from = cfg.Transcription.Language
			}
			normalizedFrom, err := language.Normalize(from)
			if err != nil {
				return fmt.Errorf("source language: %w", err)
			}
			normalizedTo, err := language.Normalize(toLang)
			if err != nil {
				return fmt.Errorf("target language: %w", err)
			}

			providers, err := buildProviders(cfg)
			if err != nil {
				return err
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			sourceLang := normalizedFrom
			if cfg.Transcription.Provider == config.ProviderRevAI {
				sourceLang = language.ForRevAI(normalizedFrom)
			}

			orch := pipeline.New(*cfg, providers, store, logger)
			outcome, err := orch.Run(cmd.Context(), pipeline.Request{
				AudioPath:     source,
				SourceLang:    sourceLang,
				TargetLang:    normalizedTo,
				Voices:        voices,
				FixTranscript: fixTranscript || cfg.Transcription.FixTranscript,
				OutputDir:     outputDir,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s completed (%s -> %s)\n", shortID(outcome.RunID), language.Display(normalizedFrom), language.Display(normalizedTo))
			if outcome.TranscriptPath != "" {
				fmt.Fprintf(out, "  Transcript:  %s\n", outcome.TranscriptPath)
			}
			fmt.Fprintf(out, "  Subtitles:   %s\n", outcome.SubtitlePath)
			fmt.Fprintf(out, "  Translation: %s\n", outcome.TranslatedPath)
			fmt.Fprintf(out, "  Dubbed:      %s\n", outcome.DubbedPath)
			if outcome.SkippedLines > 0 {
				fmt.Fprintf(out, "  Skipped %d lines with no voice bound; configure more voices to cover every speaker\n", outcome.SkippedLines)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fromLang, "from", "", "Source language (defaults to transcription.language)")
	cmd.Flags().StringVar(&toLang, "to", "", "Target language")
	cmd.Flags().StringSliceVarP(&voices, "voices", "v", nil, "Voices bound to speakers by position (defaults to synthesis.voices)")
	cmd.Flags().BoolVar(&fixTranscript, "fix-transcript", false, "Repair transcript punctuation before translating")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for exported results (defaults to paths.results_dir)")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
