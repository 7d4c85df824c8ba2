package mixer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"redub/internal/transcript"
)

type fakeSynthesizer struct {
	calls []string
	fail  map[string]error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	f.calls = append(f.calls, voice+":"+text)
	if err, ok := f.fail[text]; ok {
		return nil, err
	}
	return []byte("<" + text + ">"), nil
}

type dirRegistrar struct{ dir string }

func (d dirRegistrar) TempPath(name string) string { return filepath.Join(d.dir, name) }

func TestMixConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dubbed.mp3")
	synth := &fakeSynthesizer{}
	m := New(synth, nil)

	utterances := []transcript.Utterance{
		{Speaker: 0, Text: "hello"},
		{Speaker: 1, Text: "world"},
		{Speaker: 0, Text: "bye"},
	}
	result, err := m.Mix(context.Background(), utterances, []string{"Roger", "Aria"}, dirRegistrar{dir}, dest)
	if err != nil {
		t.Fatalf("mix: %v", err)
	}
	if result.Clips != 3 || result.Skipped != 0 {
		t.Errorf("result = %+v", result)
	}

	track, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read track: %v", err)
	}
	if string(track) != "<hello><world><bye>" {
		t.Errorf("track = %q", track)
	}
	want := []string{"Roger:hello", "Aria:world", "Roger:bye"}
	if fmt.Sprint(synth.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v", synth.calls)
	}
}

func TestMixSkipsUnboundSpeakers(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dubbed.mp3")
	synth := &fakeSynthesizer{}
	m := New(synth, nil)

	utterances := []transcript.Utterance{
		{Speaker: 0, Text: "kept"},
		{Speaker: 2, Text: "dropped"},
		{Speaker: 1, Text: "also kept"},
	}
	result, err := m.Mix(context.Background(), utterances, []string{"Roger", "Aria"}, nil, dest)
	if err != nil {
		t.Fatalf("mix: %v", err)
	}
	if result.Clips != 2 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}
	track, _ := os.ReadFile(dest)
	if string(track) != "<kept><also kept>" {
		t.Errorf("track = %q", track)
	}
}

func TestMixFailureLeavesNoPartialExport(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dubbed.mp3")
	synth := &fakeSynthesizer{fail: map[string]error{"boom": errors.New("quota exceeded")}}
	m := New(synth, nil)

	utterances := []transcript.Utterance{
		{Speaker: 0, Text: "first"},
		{Speaker: 0, Text: "boom"},
	}
	if _, err := m.Mix(context.Background(), utterances, []string{"Roger"}, nil, dest); err == nil {
		t.Fatal("expected synthesis failure to surface")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("destination must not exist after a failed mix")
	}
}

func TestMixAllSkippedIsAnError(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "dubbed.mp3")
	m := New(&fakeSynthesizer{}, nil)

	utterances := []transcript.Utterance{{Speaker: 5, Text: "lonely"}}
	if _, err := m.Mix(context.Background(), utterances, []string{"Roger"}, nil, dest); err == nil {
		t.Fatal("expected error when nothing could be synthesized")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("destination must not exist")
	}
}

func TestMixWritesClipsToRegistrar(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dubbed.mp3")
	m := New(&fakeSynthesizer{}, nil)

	utterances := []transcript.Utterance{{Speaker: 0, Text: "hello"}}
	if _, err := m.Mix(context.Background(), utterances, []string{"Roger"}, dirRegistrar{dir}, dest); err != nil {
		t.Fatalf("mix: %v", err)
	}
	clip, err := os.ReadFile(filepath.Join(dir, "clip_0000.mp3"))
	if err != nil {
		t.Fatalf("read clip: %v", err)
	}
	if string(clip) != "<hello>" {
		t.Errorf("clip = %q", clip)
	}
}

func TestMixRequiresVoices(t *testing.T) {
	m := New(&fakeSynthesizer{}, nil)
	if _, err := m.Mix(context.Background(), nil, nil, nil, "out.mp3"); err == nil {
		t.Fatal("expected error for empty voice list")
	}
}
