// Package pipeline drives a dubbing run end to end: stage the source audio,
// transcribe it, align speakers, translate the subtitle document, and
// synthesize the dubbed track. Every run owns a staging session that is
// released on success and failure alike.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"redub/internal/config"
	"redub/internal/fileutil"
	"redub/internal/ledger"
	"redub/internal/logging"
	"redub/internal/mixer"
	"redub/internal/services"
	"redub/internal/staging"
	"redub/internal/subtitle"
	"redub/internal/transcript"
)

// Transcriber is the asynchronous speech-to-text contract: submit a media
// file, poll until the job reaches a terminal state, then fetch the result.
type Transcriber interface {
	Submit(ctx context.Context, audioPath, language string) (string, error)
	Poll(ctx context.Context, jobID string) (transcript.JobState, error)
	Fetch(ctx context.Context, jobID string) (transcript.Result, error)
}

// LocalTranscriber runs speech-to-text synchronously on the local machine.
type LocalTranscriber interface {
	Transcribe(ctx context.Context, source, outputDir, language string) (transcript.Result, error)
}

// Diarizer detects speaker turns in an audio file.
type Diarizer interface {
	Run(ctx context.Context, audioPath string) ([]transcript.SpeakerTurn, error)
}

// Translator converts a whole document between languages in one call.
type Translator interface {
	Translate(ctx context.Context, text, fromLang, toLang string) (string, error)
}

// TranscriptFixer repairs punctuation in a raw transcript before decoding.
type TranscriptFixer interface {
	FixTranscript(ctx context.Context, text string) (string, error)
}

// Providers bundles the external services an orchestrator drives.
type Providers struct {
	Transcriber      Transcriber
	LocalTranscriber LocalTranscriber
	Diarizer         Diarizer
	Translator       Translator
	Fixer            TranscriptFixer
	Synthesizer      mixer.Synthesizer
}

// Request describes one dubbing run.
type Request struct {
	AudioPath     string
	SourceLang    string
	TargetLang    string
	Voices        []string
	FixTranscript bool
	OutputDir     string
}

// Outcome reports the artifacts a completed run exported.
type Outcome struct {
	RunID          string
	TranscriptPath string
	SubtitlePath   string
	TranslatedPath string
	DubbedPath     string
	SkippedLines   int
}

// Orchestrator coordinates the dubbing stages for one run at a time.
type Orchestrator struct {
	cfg          config.Config
	store        *ledger.Store
	providers    Providers
	logger       *slog.Logger
	pollInterval time.Duration
}

// New creates an orchestrator. The store may be nil, in which case runs are
// not recorded in the ledger.
func New(cfg config.Config, providers Providers, store *ledger.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Transcription.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Orchestrator{
		cfg:          cfg,
		store:        store,
		providers:    providers,
		logger:       logger,
		pollInterval: interval,
	}
}

// Run executes the pipeline for one source file. The staging session backing
// the run is always released before Run returns, whatever the outcome; the
// only artifacts that survive are the ones exported into the output
// directory, and those are only written once every stage has succeeded.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Outcome, error) {
	var outcome Outcome

	if err := o.validate(&req); err != nil {
		return outcome, err
	}

	var run *ledger.Run
	if o.store != nil {
		created, err := o.store.NewRun(ctx, req.AudioPath, req.SourceLang, req.TargetLang)
		if err != nil {
			return outcome, services.Wrap(services.ErrConfiguration, "upload", "record run", "", err)
		}
		run = created
	}

	session, err := staging.NewSession(o.cfg.Paths.StagingDir)
	if err != nil {
		return outcome, o.fail(ctx, run, services.Wrap(services.ErrConfiguration, "stage", "create session", "", err))
	}
	defer session.Release(o.logger)

	runID := session.ID()
	if run != nil {
		runID = run.RunID
	}
	outcome.RunID = runID
	ctx = services.WithRunID(ctx, runID)
	logger := o.logger.With(logging.String(logging.FieldRunID, runID))

	logger.Info("run staged",
		logging.String("source", req.AudioPath),
		logging.String("staging_dir", session.Dir()),
	)
	if err := o.setStatus(ctx, run, ledger.StatusStaged); err != nil {
		return outcome, o.fail(ctx, run, err)
	}

	result, err := o.transcribe(ctx, logger, run, session, req)
	if err != nil {
		return outcome, o.fail(ctx, run, err)
	}
	if err := o.setStatus(ctx, run, ledger.StatusTranscribed); err != nil {
		return outcome, o.fail(ctx, run, err)
	}

	captions, transcriptText, err := o.buildCaptions(ctx, logger, req, result)
	if err != nil {
		return outcome, o.fail(ctx, run, err)
	}
	// The segment path passes through an extra alignment stage; the
	// line-grammar path goes straight from transcribed to translated.
	if result.Text == "" {
		if err := o.setStatus(ctx, run, ledger.StatusAligned); err != nil {
			return outcome, o.fail(ctx, run, err)
		}
	}

	base := sourceStem(req.AudioPath)
	subtitleDoc := subtitle.Encode(captions)
	subtitlePath := session.TempPath(base + ".srt")
	if err := os.WriteFile(subtitlePath, []byte(subtitleDoc), 0o644); err != nil {
		return outcome, o.fail(ctx, run, services.Wrap(services.ErrTransient, "transcribe", "write subtitles", "", err))
	}

	var transcriptPath string
	if transcriptText != "" {
		transcriptPath = session.TempPath(base + ".transcript.txt")
		if err := os.WriteFile(transcriptPath, []byte(transcriptText), 0o644); err != nil {
			return outcome, o.fail(ctx, run, services.Wrap(services.ErrTransient, "transcribe", "write transcript", "", err))
		}
	}

	logger.Info("translating subtitles",
		logging.String(logging.FieldStage, "translate"),
		logging.String("from", req.SourceLang),
		logging.String("to", req.TargetLang),
	)
	translatedDoc, err := o.providers.Translator.Translate(ctx, subtitleDoc, req.SourceLang, req.TargetLang)
	if err != nil {
		return outcome, o.fail(ctx, run, services.Wrap(services.ErrExternalTool, "translate", "translate document", "", err))
	}
	translatedPath := session.TempPath(base + "." + req.TargetLang + ".srt")
	if err := os.WriteFile(translatedPath, []byte(translatedDoc), 0o644); err != nil {
		return outcome, o.fail(ctx, run, services.Wrap(services.ErrTransient, "translate", "write translation", "", err))
	}
	if err := o.setStatus(ctx, run, ledger.StatusTranslated); err != nil {
		return outcome, o.fail(ctx, run, err)
	}

	utterances := subtitle.ExtractUtterances(translatedDoc)
	if len(utterances) == 0 {
		return outcome, o.fail(ctx, run, services.Wrap(services.ErrEmptyResult, "synthesize", "extract utterances", "translated document has no speaker lines", nil))
	}

	logger.Info("synthesizing dubbed track",
		logging.String(logging.FieldStage, "synthesize"),
		logging.Int("utterances", len(utterances)),
		logging.Int("voices", len(req.Voices)),
	)
	dubbedPath := session.TempPath(base + ".dubbed.mp3")
	mix := mixer.New(o.providers.Synthesizer, logger)
	mixed, err := mix.Mix(ctx, utterances, req.Voices, session, dubbedPath)
	if err != nil {
		return outcome, o.fail(ctx, run, services.Wrap(services.ErrExternalTool, "synthesize", "mix track", "", err))
	}
	outcome.SkippedLines = mixed.Skipped
	if err := o.setStatus(ctx, run, ledger.StatusSynthesized); err != nil {
		return outcome, o.fail(ctx, run, err)
	}

	exported, err := o.export(req.OutputDir, transcriptPath, subtitlePath, translatedPath, dubbedPath)
	if err != nil {
		return outcome, o.fail(ctx, run, services.Wrap(services.ErrTransient, "export", "copy results", "", err))
	}
	outcome.TranscriptPath = exported.TranscriptPath
	outcome.SubtitlePath = exported.SubtitlePath
	outcome.TranslatedPath = exported.TranslatedPath
	outcome.DubbedPath = exported.DubbedPath

	if run != nil {
		run.TranscriptFile = outcome.TranscriptPath
		run.SubtitleFile = outcome.SubtitlePath
		run.TranslatedFile = outcome.TranslatedPath
		run.OutputFile = outcome.DubbedPath
		run.Status = ledger.StatusCompleted
		if err := o.store.Update(ctx, run); err != nil {
			return outcome, services.Wrap(services.ErrConfiguration, "export", "record completion", "", err)
		}
	}

	logger.Info("run completed",
		logging.String("dubbed", outcome.DubbedPath),
		logging.Int("skipped_lines", outcome.SkippedLines),
	)
	return outcome, nil
}

func (o *Orchestrator) validate(req *Request) error {
	if strings.TrimSpace(req.AudioPath) == "" {
		return services.Wrap(services.ErrValidation, "upload", "check source", "audio path required", nil)
	}
	info, err := os.Stat(req.AudioPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "upload", "check source", "", err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "upload", "check source", "audio path is a directory", nil)
	}
	if req.SourceLang == "" {
		req.SourceLang = o.cfg.Transcription.Language
	}
	if req.TargetLang == "" {
		return services.Wrap(services.ErrValidation, "upload", "check request", "target language required", nil)
	}
	if len(req.Voices) == 0 {
		req.Voices = o.cfg.Synthesis.Voices
	}
	if len(req.Voices) == 0 {
		return services.Wrap(services.ErrConfiguration, "synthesize", "check voices", "at least one voice required", nil)
	}
	if req.OutputDir == "" {
		req.OutputDir = o.cfg.Paths.ResultsDir
	}
	if o.providers.Transcriber == nil && o.providers.LocalTranscriber == nil {
		return services.Wrap(services.ErrConfiguration, "transcribe", "check providers", "no transcription provider configured", nil)
	}
	if o.providers.LocalTranscriber != nil && o.providers.Transcriber == nil && o.providers.Diarizer == nil {
		return services.Wrap(services.ErrConfiguration, "align", "check providers", "local transcription requires diarization", nil)
	}
	if o.providers.Translator == nil {
		return services.Wrap(services.ErrConfiguration, "translate", "check providers", "no translation provider configured", nil)
	}
	if o.providers.Synthesizer == nil {
		return services.Wrap(services.ErrConfiguration, "synthesize", "check providers", "no synthesis provider configured", nil)
	}
	return nil
}

// transcribe runs either the async job provider or the local tool, depending
// on which is wired.
func (o *Orchestrator) transcribe(ctx context.Context, logger *slog.Logger, run *ledger.Run, session *staging.Session, req Request) (transcript.Result, error) {
	ctx = services.WithStage(ctx, "transcribe")

	if err := o.setStatus(ctx, run, ledger.StatusTranscribing); err != nil {
		return transcript.Result{}, err
	}

	if o.providers.Transcriber != nil {
		jobID, err := o.providers.Transcriber.Submit(ctx, req.AudioPath, req.SourceLang)
		if err != nil {
			return transcript.Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "submit job", "", err)
		}
		logger.Info("transcription job submitted",
			logging.String(logging.FieldStage, "transcribe"),
			logging.String("job_id", jobID),
		)
		if err := o.awaitJob(ctx, logger, jobID); err != nil {
			return transcript.Result{}, err
		}
		result, err := o.providers.Transcriber.Fetch(ctx, jobID)
		if err != nil {
			return transcript.Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "fetch transcript", "", err)
		}
		return result, nil
	}

	result, err := o.providers.LocalTranscriber.Transcribe(ctx, req.AudioPath, session.Dir(), req.SourceLang)
	if err != nil {
		return transcript.Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "run local tool", "", err)
	}
	return result, nil
}

// awaitJob polls at a fixed interval until the job reaches a terminal state.
// Only the caller's context bounds the wait; there is no attempt cap.
func (o *Orchestrator) awaitJob(ctx context.Context, logger *slog.Logger, jobID string) error {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		state, err := o.providers.Transcriber.Poll(ctx, jobID)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "transcribe", "poll job", "", err)
		}
		switch state {
		case transcript.JobSucceeded:
			return nil
		case transcript.JobFailed:
			return services.Wrap(services.ErrExternalTool, "transcribe", "poll job", fmt.Sprintf("job %s failed", jobID), nil)
		}
		logger.Debug("transcription in progress",
			logging.String("job_id", jobID),
			logging.String("state", string(state)),
		)
		select {
		case <-ctx.Done():
			return services.Wrap(services.ErrTimeout, "transcribe", "poll job", "", ctx.Err())
		case <-ticker.C:
		}
	}
}

// buildCaptions turns the raw transcription result into timed captions. A
// line-grammar transcript is decoded directly; a segment list is aligned
// against diarized speaker turns first.
func (o *Orchestrator) buildCaptions(ctx context.Context, logger *slog.Logger, req Request, result transcript.Result) ([]subtitle.Caption, string, error) {
	if result.Text != "" {
		text := result.Text
		if req.FixTranscript && o.providers.Fixer != nil {
			fixed, err := o.providers.Fixer.FixTranscript(ctx, text)
			if err != nil {
				return nil, "", services.Wrap(services.ErrExternalTool, "transcribe", "fix transcript", "", err)
			}
			text = fixed
		}
		captions := subtitle.Decode(text)
		if len(captions) == 0 {
			return nil, "", services.Wrap(services.ErrEmptyResult, "transcribe", "decode transcript", "no usable transcript lines", nil)
		}
		return captions, text, nil
	}

	if o.providers.Diarizer == nil {
		return nil, "", services.Wrap(services.ErrConfiguration, "align", "check providers", "segment transcript requires diarization", nil)
	}
	ctx = services.WithStage(ctx, "align")
	turns, err := o.providers.Diarizer.Run(ctx, req.AudioPath)
	if err != nil {
		return nil, "", services.Wrap(services.ErrExternalTool, "align", "diarize", "", err)
	}
	utterances, windows := transcript.AlignWindows(turns, result.Segments)
	if len(utterances) == 0 {
		return nil, "", services.Wrap(services.ErrEmptyResult, "align", "overlap segments", "no utterances aligned with speaker turns", nil)
	}
	logger.Info("aligned transcript with speaker turns",
		logging.String(logging.FieldStage, "align"),
		logging.Int("turns", len(turns)),
		logging.Int("segments", len(result.Segments)),
		logging.Int("utterances", len(utterances)),
	)
	return subtitle.FromUtterances(utterances, windows), "", nil
}

type exportedPaths struct {
	TranscriptPath string
	SubtitlePath   string
	TranslatedPath string
	DubbedPath     string
}

// export copies the finished artifacts out of staging into the output
// directory. The dubbed track is verified during copy; it is the one
// artifact whose corruption would be invisible until playback.
func (o *Orchestrator) export(outputDir, transcriptPath, subtitlePath, translatedPath, dubbedPath string) (exportedPaths, error) {
	var exported exportedPaths
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return exported, fmt.Errorf("create output directory: %w", err)
	}

	copyOut := func(src string) (string, error) {
		dst := filepath.Join(outputDir, filepath.Base(src))
		if err := fileutil.CopyFile(src, dst); err != nil {
			return "", fmt.Errorf("copy %s: %w", filepath.Base(src), err)
		}
		return dst, nil
	}

	var err error
	if transcriptPath != "" {
		if exported.TranscriptPath, err = copyOut(transcriptPath); err != nil {
			return exported, err
		}
	}
	if exported.SubtitlePath, err = copyOut(subtitlePath); err != nil {
		return exported, err
	}
	if exported.TranslatedPath, err = copyOut(translatedPath); err != nil {
		return exported, err
	}
	dubbedDst := filepath.Join(outputDir, filepath.Base(dubbedPath))
	if err := fileutil.CopyFileVerified(dubbedPath, dubbedDst); err != nil {
		return exported, fmt.Errorf("copy %s: %w", filepath.Base(dubbedPath), err)
	}
	exported.DubbedPath = dubbedDst
	return exported, nil
}

func (o *Orchestrator) setStatus(ctx context.Context, run *ledger.Run, status ledger.Status) error {
	if run == nil || o.store == nil {
		return nil
	}
	if err := o.store.SetStatus(ctx, run, status); err != nil {
		return services.Wrap(services.ErrConfiguration, string(status), "record status", "", err)
	}
	return nil
}

// fail records the failure in the ledger without overriding the primary error.
func (o *Orchestrator) fail(ctx context.Context, run *ledger.Run, err error) error {
	if run != nil && o.store != nil {
		if markErr := o.store.MarkFailed(context.WithoutCancel(ctx), run, err.Error()); markErr != nil {
			o.logger.Warn("failed to record run failure",
				logging.String(logging.FieldRunID, run.RunID),
				logging.Error(markErr),
			)
		}
	}
	o.logger.Error("run failed", logging.Error(err))
	return err
}

func sourceStem(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimSpace(stem) == "" {
		return "output"
	}
	return stem
}
