package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/mixer"
	"redub/internal/staging"
	"redub/internal/subtitle"
)

func newSpeakCommand(ctx *commandContext) *cobra.Command {
	var (
		voices     []string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "speak <subtitle-file>",
		Short: "Synthesize a speaker-labeled subtitle file into audio",
		Long: `Read an SRT file whose cues carry "Speaker N:" labels and synthesize one
audio clip per line, using the voice bound to each speaker by position.
Speakers beyond the voice roster are skipped with a warning.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireSynthesisKey(); err != nil {
				return err
			}

			input, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read subtitles: %w", err)
			}

			utterances := subtitle.ExtractUtterances(string(raw))
			if len(utterances) == 0 {
				return errors.New("no speaker-labeled lines found in input")
			}

			roster := voices
			if len(roster) == 0 {
				roster = cfg.Synthesis.Voices
			}

			target, err := config.ExpandPath(outputPath)
			if err != nil {
				return err
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			session, err := staging.NewSession(cfg.Paths.StagingDir)
			if err != nil {
				return err
			}
			defer session.Release(logger)

			mix := mixer.New(synthesisClient(cfg), logger)
			result, err := mix.Mix(cmd.Context(), utterances, roster, session, target)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (%d clips, %s)\n", target, result.Clips, formatBytes(result.Bytes))
			if result.Skipped > 0 {
				fmt.Fprintf(out, "Skipped %d lines with no voice bound\n", result.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&voices, "voices", "v", nil, "Voices bound to speakers by position (defaults to synthesis.voices)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "output.mp3", "Output audio file path")

	return cmd
}
