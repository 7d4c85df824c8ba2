package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"redub/internal/config"
	"redub/internal/ledger"
	"redub/internal/testsupport"
	"redub/internal/transcript"
)

type fakeTranscriber struct {
	pollsBeforeDone int
	polls           int
	text            string
	failJob         bool
	onSubmit        func()
}

func (f *fakeTranscriber) Submit(ctx context.Context, audioPath, language string) (string, error) {
	if f.onSubmit != nil {
		f.onSubmit()
	}
	return "job-1", nil
}

func (f *fakeTranscriber) Poll(ctx context.Context, jobID string) (transcript.JobState, error) {
	f.polls++
	if f.failJob {
		return transcript.JobFailed, nil
	}
	if f.polls > f.pollsBeforeDone {
		return transcript.JobSucceeded, nil
	}
	return transcript.JobInProgress, nil
}

func (f *fakeTranscriber) Fetch(ctx context.Context, jobID string) (transcript.Result, error) {
	return transcript.Result{Text: f.text}, nil
}

type fakeLocalTranscriber struct {
	segments []transcript.Segment
}

func (f *fakeLocalTranscriber) Transcribe(ctx context.Context, source, outputDir, language string) (transcript.Result, error) {
	return transcript.Result{Segments: f.segments}, nil
}

type fakeDiarizer struct {
	turns []transcript.SpeakerTurn
	onRun func()
}

func (f *fakeDiarizer) Run(ctx context.Context, audioPath string) ([]transcript.SpeakerTurn, error) {
	if f.onRun != nil {
		f.onRun()
	}
	return f.turns, nil
}

type fakeTranslator struct {
	lastInput string
	err       error
}

func (f *fakeTranslator) Translate(ctx context.Context, text, fromLang, toLang string) (string, error) {
	f.lastInput = text
	if f.err != nil {
		return "", f.err
	}
	return text, nil
}

type fakeSynthesizer struct {
	calls []string
	err   error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, voice+":"+text)
	return []byte("(" + text + ")"), nil
}

func writeSource(t *testing.T, cfg *config.Config) string {
	t.Helper()
	source := filepath.Join(testsupport.BaseDir(cfg), "talk.wav")
	testsupport.WriteText(t, source, "pcm")
	return source
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("read dir %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Errorf("expected %s to be empty, found %d entries", dir, len(entries))
	}
}

func TestRunAsyncTranscriptionPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := writeSource(t, cfg)

	transcriber := &fakeTranscriber{
		pollsBeforeDone: 1,
		text:            "Speaker 0    00:00:05    hello there\nSpeaker 1    00:00:11    good to see you\n",
	}
	translator := &fakeTranslator{}
	synth := &fakeSynthesizer{}
	orch := New(*cfg, Providers{
		Transcriber: transcriber,
		Translator:  translator,
		Synthesizer: synth,
	}, store, nil)

	outcome, err := orch.Run(context.Background(), Request{
		AudioPath:  source,
		SourceLang: "en",
		TargetLang: "es",
		Voices:     []string{"Roger", "Aria"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if transcriber.polls < 2 {
		t.Errorf("expected at least 2 polls, got %d", transcriber.polls)
	}
	if !strings.Contains(translator.lastInput, "Speaker 0: hello there") {
		t.Errorf("translator input = %q", translator.lastInput)
	}
	if len(synth.calls) != 2 {
		t.Fatalf("synth calls = %v", synth.calls)
	}
	if synth.calls[0] != "Roger:hello there" || synth.calls[1] != "Aria:good to see you" {
		t.Errorf("voice binding wrong: %v", synth.calls)
	}

	for _, path := range []string{outcome.TranscriptPath, outcome.SubtitlePath, outcome.TranslatedPath, outcome.DubbedPath} {
		if path == "" {
			t.Fatal("expected all artifact paths to be set")
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact missing: %v", err)
		}
	}
	dubbed, _ := os.ReadFile(outcome.DubbedPath)
	if string(dubbed) != "(hello there)(good to see you)" {
		t.Errorf("dubbed track = %q", dubbed)
	}

	runs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != ledger.StatusCompleted {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].OutputFile != outcome.DubbedPath {
		t.Errorf("ledger output = %q", runs[0].OutputFile)
	}

	requireEmptyDir(t, cfg.Paths.StagingDir)
}

func TestRunLocalTranscriptionWithDiarization(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := writeSource(t, cfg)

	local := &fakeLocalTranscriber{segments: []transcript.Segment{
		{Start: 0, End: 4, Text: "hello"},
		{Start: 4, End: 9, Text: "world"},
		{Start: 9, End: 12, Text: "bye"},
	}}
	diarizer := &fakeDiarizer{turns: []transcript.SpeakerTurn{
		{Speaker: 0, Start: 0, End: 5},
		{Speaker: 1, Start: 5, End: 12},
	}}
	synth := &fakeSynthesizer{}
	orch := New(*cfg, Providers{
		LocalTranscriber: local,
		Diarizer:         diarizer,
		Translator:       &fakeTranslator{},
		Synthesizer:      synth,
	}, nil, nil)

	outcome, err := orch.Run(context.Background(), Request{
		AudioPath:  source,
		SourceLang: "en",
		TargetLang: "fr",
		Voices:     []string{"Roger", "Aria"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if outcome.TranscriptPath != "" {
		t.Error("segment path must not export a raw transcript")
	}
	doc, err := os.ReadFile(outcome.SubtitlePath)
	if err != nil {
		t.Fatalf("read subtitles: %v", err)
	}
	if !strings.Contains(string(doc), "Speaker 0: hello world") {
		t.Errorf("subtitle doc = %q", doc)
	}
	if !strings.Contains(string(doc), "Speaker 1: world bye") {
		t.Errorf("subtitle doc = %q", doc)
	}

	requireEmptyDir(t, cfg.Paths.StagingDir)
}

func TestRunRecordsTranscribedBeforeAligned(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := writeSource(t, cfg)

	local := &fakeLocalTranscriber{segments: []transcript.Segment{
		{Start: 0, End: 4, Text: "hello"},
	}}
	var statusAtDiarize ledger.Status
	diarizer := &fakeDiarizer{turns: []transcript.SpeakerTurn{{Speaker: 0, Start: 0, End: 5}}}
	diarizer.onRun = func() {
		runs, err := store.List(context.Background())
		if err != nil {
			t.Errorf("list runs: %v", err)
			return
		}
		if len(runs) == 1 {
			statusAtDiarize = runs[0].Status
		}
	}
	orch := New(*cfg, Providers{
		LocalTranscriber: local,
		Diarizer:         diarizer,
		Translator:       &fakeTranslator{},
		Synthesizer:      &fakeSynthesizer{},
	}, store, nil)

	if _, err := orch.Run(context.Background(), Request{AudioPath: source, TargetLang: "es", Voices: []string{"Roger"}}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if statusAtDiarize != ledger.StatusTranscribed {
		t.Errorf("status at diarization = %q, want %q", statusAtDiarize, ledger.StatusTranscribed)
	}
	runs, _ := store.List(context.Background())
	if len(runs) != 1 || runs[0].Status != ledger.StatusCompleted {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestRunStatusWriteFailureMarksRunFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := writeSource(t, cfg)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	// Closing the store mid-run makes every later ledger write fail.
	transcriber := &fakeTranscriber{
		text:     "Speaker 0    00:00:01    hello\n",
		onSubmit: func() { store.Close() },
	}
	orch := New(*cfg, Providers{
		Transcriber: transcriber,
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynthesizer{},
	}, store, logger)

	_, err := orch.Run(context.Background(), Request{AudioPath: source, TargetLang: "es", Voices: []string{"Roger"}})
	if err == nil || !strings.Contains(err.Error(), "record status") {
		t.Fatalf("expected status write error, got %v", err)
	}
	if !strings.Contains(logs.String(), "run failed") {
		t.Errorf("status write failures must go through the failure path, logs = %q", logs.String())
	}
	requireEmptyDir(t, cfg.Paths.StagingDir)
	requireEmptyDir(t, cfg.Paths.ResultsDir)
}

func TestRunFailsWhenNothingAligns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := writeSource(t, cfg)

	local := &fakeLocalTranscriber{segments: []transcript.Segment{{Start: 50, End: 60, Text: "late"}}}
	diarizer := &fakeDiarizer{turns: []transcript.SpeakerTurn{{Speaker: 0, Start: 0, End: 5}}}
	orch := New(*cfg, Providers{
		LocalTranscriber: local,
		Diarizer:         diarizer,
		Translator:       &fakeTranslator{},
		Synthesizer:      &fakeSynthesizer{},
	}, store, nil)

	_, err := orch.Run(context.Background(), Request{AudioPath: source, TargetLang: "es", Voices: []string{"Roger"}})
	if err == nil {
		t.Fatal("expected empty alignment to fail the run")
	}

	runs, _ := store.List(context.Background())
	if len(runs) != 1 || runs[0].Status != ledger.StatusFailed {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].ErrorMessage == "" {
		t.Error("failure message must be recorded")
	}

	requireEmptyDir(t, cfg.Paths.StagingDir)
	requireEmptyDir(t, cfg.Paths.ResultsDir)
}

func TestRunSynthesisFailureExportsNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := writeSource(t, cfg)

	transcriber := &fakeTranscriber{text: "Speaker 0    00:00:01    hello\n"}
	orch := New(*cfg, Providers{
		Transcriber: transcriber,
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynthesizer{err: errors.New("quota exceeded")},
	}, nil, nil)

	_, err := orch.Run(context.Background(), Request{AudioPath: source, TargetLang: "es", Voices: []string{"Roger"}})
	if err == nil {
		t.Fatal("expected synthesis failure to surface")
	}

	requireEmptyDir(t, cfg.Paths.StagingDir)
	requireEmptyDir(t, cfg.Paths.ResultsDir)
}

func TestRunFailedJobSurfaces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := writeSource(t, cfg)

	orch := New(*cfg, Providers{
		Transcriber: &fakeTranscriber{failJob: true},
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynthesizer{},
	}, nil, nil)

	_, err := orch.Run(context.Background(), Request{AudioPath: source, TargetLang: "es", Voices: []string{"Roger"}})
	if err == nil || !strings.Contains(err.Error(), "failed") {
		t.Fatalf("expected job failure, got %v", err)
	}
	requireEmptyDir(t, cfg.Paths.StagingDir)
}

func TestRunPollingStopsOnContextCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := writeSource(t, cfg)

	// never finishes
	orch := New(*cfg, Providers{
		Transcriber: &fakeTranscriber{pollsBeforeDone: 1 << 30},
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynthesizer{},
	}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(ctx, Request{AudioPath: source, TargetLang: "es", Voices: []string{"Roger"}})
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after context cancellation")
	}
	requireEmptyDir(t, cfg.Paths.StagingDir)
}

func TestRunValidatesRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	orch := New(*cfg, Providers{
		Transcriber: &fakeTranscriber{},
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynthesizer{},
	}, nil, nil)

	if _, err := orch.Run(context.Background(), Request{TargetLang: "es"}); err == nil {
		t.Error("expected error for missing audio path")
	}

	source := writeSource(t, cfg)
	if _, err := orch.Run(context.Background(), Request{AudioPath: source}); err == nil {
		t.Error("expected error for missing target language")
	}
}

func TestRunDefaultsVoicesFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithVoices("Solo"))
	source := writeSource(t, cfg)

	synth := &fakeSynthesizer{}
	orch := New(*cfg, Providers{
		Transcriber: &fakeTranscriber{text: "Speaker 0    00:00:01    hello\n"},
		Translator:  &fakeTranslator{},
		Synthesizer: synth,
	}, nil, nil)

	if _, err := orch.Run(context.Background(), Request{AudioPath: source, TargetLang: "es"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(synth.calls) != 1 || !strings.HasPrefix(synth.calls[0], "Solo:") {
		t.Errorf("calls = %v", synth.calls)
	}
}
