// Package diarize runs a local speaker-diarization command-line tool and
// parses the speaker turns it emits on stdout as JSON.
package diarize

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"redub/internal/transcript"
)

// DefaultBinary is the diarization CLI entrypoint.
const DefaultBinary = "diarize"

// Service provides speaker diarization via an external tool.
type Service struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService creates a diarization service using the given binary.
func NewService(binary string) *Service {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Service{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
}

type turnOutput struct {
	Speaker int     `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Run diarizes the audio file and returns speaker turns sorted by start time.
func (s *Service) Run(ctx context.Context, audioPath string) ([]transcript.SpeakerTurn, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, fmt.Errorf("diarize: audio path required")
	}

	output, err := s.run(ctx, s.binary, audioPath, "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("diarize: %w", err)
	}

	var raw []turnOutput
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("diarize: decode output: %w", err)
	}

	turns := make([]transcript.SpeakerTurn, 0, len(raw))
	for _, turn := range raw {
		if turn.Speaker < 0 || turn.End <= turn.Start {
			continue
		}
		turns = append(turns, transcript.SpeakerTurn{Speaker: turn.Speaker, Start: turn.Start, End: turn.End})
	}
	transcript.SortTurns(turns)
	return turns, nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		detail := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, detail)
	}
	return output, nil
}
