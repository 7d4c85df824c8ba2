// Package whisper runs a local Whisper command-line transcriber and loads the
// timed segments it produces. Unlike the Rev.ai path, the output carries real
// start/end boundaries per segment and pairs with speaker diarization.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"redub/internal/transcript"
)

// DefaultBinary is the whisper CLI entrypoint.
const DefaultBinary = "whisper"

// DefaultModel is used when the configuration does not name one.
const DefaultModel = "small"

// Config captures the runtime settings for the whisper tool.
type Config struct {
	Binary string
	Model  string
}

// Service provides local Whisper transcription.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a whisper service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

// Transcribe runs whisper over the audio file and returns its timed segments.
// outputDir is where the tool writes its JSON result; callers own that file's
// lifecycle and should register it for cleanup.
func (s *Service) Transcribe(ctx context.Context, source, outputDir, language string) (transcript.Result, error) {
	var result transcript.Result

	if source == "" {
		return result, fmt.Errorf("whisper transcribe: source path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("whisper transcribe: ensure output dir: %w", err)
	}

	args := []string{
		source,
		"--model", s.cfg.Model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--fp16", "False",
	}
	if language != "" {
		args = append(args, "--language", language)
	}
	if err := s.run(ctx, s.cfg.Binary, args...); err != nil {
		return result, fmt.Errorf("whisper: %w", err)
	}

	jsonPath := OutputPath(source, outputDir)
	segments, err := loadSegments(jsonPath)
	if err != nil {
		return result, err
	}
	result.Segments = segments
	return result, nil
}

// OutputPath derives the JSON file whisper writes for the given source.
func OutputPath(source, outputDir string) string {
	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(outputDir, baseName+".json")
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

type whisperOutput struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func loadSegments(path string) ([]transcript.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("whisper: read output: %w", err)
	}
	var output whisperOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("whisper: decode output: %w", err)
	}
	segments := make([]transcript.Segment, 0, len(output.Segments))
	for _, seg := range output.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcript.Segment{Start: seg.Start, End: seg.End, Text: text})
	}
	transcript.SortSegments(segments)
	return segments, nil
}
