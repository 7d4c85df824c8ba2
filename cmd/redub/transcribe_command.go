package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/language"
	"redub/internal/pipeline"
	"redub/internal/staging"
	"redub/internal/subtitle"
	"redub/internal/transcript"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var (
		langFlag      string
		format        string
		saveDir       string
		jobID         string
		fixTranscript bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file without translating it",
		Long: `Transcribe an audio file and save the result as SRT subtitles, a readable
text transcript, or both. With --job, skip submission and fetch the result
of an already-submitted transcription job instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			switch format {
			case "srt", "txt", "both":
			default:
				return fmt.Errorf("unknown format %q (expected srt, txt, or both)", format)
			}

			providers, err := transcriptionProviders(cfg)
			if err != nil {
				return err
			}

			var (
				source string
				stem   string
			)
			if jobID == "" {
				if len(args) != 1 {
					return errors.New("an audio file is required unless --job is given")
				}
				source, err = config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				if _, err := os.Stat(source); err != nil {
					return fmt.Errorf("inspect audio file: %w", err)
				}
				stem = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
			} else {
				if cfg.Transcription.Provider != config.ProviderRevAI {
					return errors.New("--job requires the revai provider")
				}
				stem = jobID
			}

			lang := langFlag
			if lang == "" {
				lang = cfg.Transcription.Language
			}
			normalized, err := language.Normalize(lang)
			if err != nil {
				return fmt.Errorf("language: %w", err)
			}

			target := saveDir
			if target == "" {
				target = cfg.Paths.ResultsDir
			}
			if target, err = config.ExpandPath(target); err != nil {
				return err
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create save directory: %w", err)
			}

			var rendered renderedTranscript
			switch cfg.Transcription.Provider {
			case config.ProviderRevAI:
				rendered, err = transcribeRemote(cmd.Context(), providers, cfg, source, jobID, language.ForRevAI(normalized), fixTranscript)
			case config.ProviderWhisper:
				rendered, err = transcribeLocal(cmd.Context(), providers, cfg, source, normalized)
			default:
				err = fmt.Errorf("unknown transcription provider %q", cfg.Transcription.Provider)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "srt" || format == "both" {
				path := filepath.Join(target, stem+".srt")
				if err := os.WriteFile(path, []byte(rendered.SRT), 0o644); err != nil {
					return fmt.Errorf("write subtitles: %w", err)
				}
				fmt.Fprintf(out, "Wrote %s\n", path)
			}
			if format == "txt" || format == "both" {
				if rendered.Text == "" {
					if format == "txt" {
						return errors.New("txt output requires the revai provider; whisper produces timed segments only")
					}
				} else {
					path := filepath.Join(target, stem+".txt")
					if err := os.WriteFile(path, []byte(rendered.Text), 0o644); err != nil {
						return fmt.Errorf("write transcript: %w", err)
					}
					fmt.Fprintf(out, "Wrote %s\n", path)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&langFlag, "language", "l", "", "Audio language (defaults to transcription.language)")
	cmd.Flags().StringVarP(&format, "format", "f", "both", "Output format: srt, txt, or both")
	cmd.Flags().StringVarP(&saveDir, "save-dir", "s", "", "Directory for output files (defaults to paths.results_dir)")
	cmd.Flags().StringVar(&jobID, "job", "", "Fetch an already-submitted transcription job instead of uploading")
	cmd.Flags().BoolVar(&fixTranscript, "fix-transcript", false, "Repair transcript punctuation before rendering")

	return cmd
}

// renderedTranscript carries both output renditions of one transcription. Text
// is empty on the whisper path, which has no line-grammar transcript.
type renderedTranscript struct {
	SRT  string
	Text string
}

func transcribeRemote(cmdCtx context.Context, providers pipeline.Providers, cfg *config.Config, source, jobID, lang string, fix bool) (renderedTranscript, error) {
	var rendered renderedTranscript

	if jobID == "" {
		submitted, err := providers.Transcriber.Submit(cmdCtx, source, lang)
		if err != nil {
			return rendered, err
		}
		jobID = submitted
	}

	interval := time.Duration(cfg.Transcription.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := providers.Transcriber.Poll(cmdCtx, jobID)
		if err != nil {
			return rendered, err
		}
		if state == transcript.JobSucceeded {
			break
		}
		if state == transcript.JobFailed {
			return rendered, fmt.Errorf("transcription job %s failed", jobID)
		}
		select {
		case <-cmdCtx.Done():
			return rendered, cmdCtx.Err()
		case <-ticker.C:
		}
	}

	result, err := providers.Transcriber.Fetch(cmdCtx, jobID)
	if err != nil {
		return rendered, err
	}
	text := result.Text

	if fix || cfg.Transcription.FixTranscript {
		if err := cfg.RequireTranslationKey(); err != nil {
			return rendered, err
		}
		fixed, err := fixerClient(cfg).FixTranscript(cmdCtx, text)
		if err != nil {
			return rendered, err
		}
		text = fixed
	}

	captions := subtitle.Decode(text)
	if len(captions) == 0 {
		return rendered, errors.New("transcript contains no usable lines")
	}
	rendered.SRT = subtitle.Encode(captions)
	rendered.Text = subtitle.FormatReadable(text)
	return rendered, nil
}

func transcribeLocal(cmdCtx context.Context, providers pipeline.Providers, cfg *config.Config, source, lang string) (renderedTranscript, error) {
	var rendered renderedTranscript
	if providers.Diarizer == nil {
		return rendered, errors.New("whisper transcription requires diarization; enable [diarization] in the config")
	}

	session, err := staging.NewSession(cfg.Paths.StagingDir)
	if err != nil {
		return rendered, err
	}
	defer session.Release(nil)

	result, err := providers.LocalTranscriber.Transcribe(cmdCtx, source, session.Dir(), lang)
	if err != nil {
		return rendered, err
	}
	turns, err := providers.Diarizer.Run(cmdCtx, source)
	if err != nil {
		return rendered, err
	}

	utterances, windows := transcript.AlignWindows(turns, result.Segments)
	if len(utterances) == 0 {
		return rendered, errors.New("no transcript segments overlap the detected speaker turns")
	}
	rendered.SRT = subtitle.Encode(subtitle.FromUtterances(utterances, windows))
	return rendered, nil
}
