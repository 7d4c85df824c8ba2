// Package mixer turns a speaker-labelled utterance list into a single dubbed
// audio track. Each utterance is synthesized with the voice bound to its
// speaker index and the resulting MP3 clips are concatenated in order.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"redub/internal/logging"
	"redub/internal/transcript"
)

// Synthesizer renders one utterance of text with a named voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Registrar hands out scratch paths that are cleaned up when the owning
// session is released. *staging.Session satisfies it.
type Registrar interface {
	TempPath(name string) string
}

// Result summarizes one mixing pass.
type Result struct {
	Clips   int
	Skipped int
	Bytes   int64
}

// Mixer synthesizes and concatenates per-utterance audio clips.
type Mixer struct {
	synthesizer Synthesizer
	logger      *slog.Logger
}

// New creates a mixer backed by the given synthesizer.
func New(synthesizer Synthesizer, logger *slog.Logger) *Mixer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Mixer{synthesizer: synthesizer, logger: logger}
}

// Mix synthesizes every utterance whose speaker has a voice bound by position
// in voices, writes each clip into the registrar's scratch space, and exports
// the concatenated track to dest. Speakers without a bound voice are skipped
// with a warning. Any synthesis or write failure aborts the run before dest
// is touched, so a partial mix is never exported.
func (m *Mixer) Mix(ctx context.Context, utterances []transcript.Utterance, voices []string, registrar Registrar, dest string) (Result, error) {
	if m.synthesizer == nil {
		return Result{}, errors.New("mix: synthesizer required")
	}
	if dest == "" {
		return Result{}, errors.New("mix: destination path required")
	}
	if len(voices) == 0 {
		return Result{}, errors.New("mix: at least one voice required")
	}

	var (
		result Result
		track  []byte
	)
	for i, utterance := range utterances {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if utterance.Speaker < 0 || utterance.Speaker >= len(voices) {
			result.Skipped++
			m.logger.Warn("no voice assigned for speaker, skipping line",
				logging.Int("speaker", utterance.Speaker),
				logging.Int("utterance", i),
				logging.String(logging.FieldEventType, "voice_unbound"),
				logging.String(logging.FieldImpact, "line omitted from dubbed track"),
			)
			continue
		}

		voice := voices[utterance.Speaker]
		m.logger.Info("synthesizing utterance",
			logging.Int("speaker", utterance.Speaker),
			logging.String("voice", voice),
			logging.Int("utterance", i),
		)
		clip, err := m.synthesizer.Synthesize(ctx, utterance.Text, voice)
		if err != nil {
			return Result{}, fmt.Errorf("mix: synthesize utterance %d (speaker %d): %w", i, utterance.Speaker, err)
		}

		if registrar != nil {
			clipPath := registrar.TempPath(fmt.Sprintf("clip_%04d.mp3", i))
			if err := os.WriteFile(clipPath, clip, 0o644); err != nil {
				return Result{}, fmt.Errorf("mix: write clip %d: %w", i, err)
			}
		}

		track = append(track, clip...)
		result.Clips++
	}

	if result.Clips == 0 {
		return Result{}, errors.New("mix: no utterances could be synthesized")
	}

	if err := os.WriteFile(dest, track, 0o644); err != nil {
		return Result{}, fmt.Errorf("mix: export track: %w", err)
	}
	result.Bytes = int64(len(track))
	m.logger.Info("exported dubbed track",
		logging.String("path", dest),
		logging.Int("clips", result.Clips),
		logging.Int("skipped", result.Skipped),
	)
	return result, nil
}
