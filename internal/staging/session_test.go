package staging

import (
	"os"
	"path/filepath"
	"testing"

	"redub/internal/logging"
)

func TestNewSessionUniqueDirs(t *testing.T) {
	root := t.TempDir()

	first, err := NewSession(root)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	second, err := NewSession(root)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	if first.Dir() == second.Dir() {
		t.Fatal("concurrent sessions must not share a directory")
	}
	for _, s := range []*Session{first, second} {
		if info, err := os.Stat(s.Dir()); err != nil || !info.IsDir() {
			t.Errorf("expected session directory %q", s.Dir())
		}
	}
}

func TestNewSessionRequiresRoot(t *testing.T) {
	if _, err := NewSession(""); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestReleaseRemovesArtifactsAndDir(t *testing.T) {
	root := t.TempDir()
	session, err := NewSession(root)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	inside := session.TempPath("upload.mp3")
	if err := os.WriteFile(inside, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	outside := filepath.Join(root, "outside.srt")
	if err := os.WriteFile(outside, []byte("captions"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	session.Register(outside)

	failures := session.Release(logging.NewNop())
	if len(failures) != 0 {
		t.Fatalf("unexpected cleanup failures: %+v", failures)
	}
	for _, path := range []string{inside, outside, session.Dir()} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected %q to be removed", path)
		}
	}
}

func TestReleaseToleratesMissingArtifacts(t *testing.T) {
	root := t.TempDir()
	session, err := NewSession(root)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	session.Register(filepath.Join(root, "never-created.tmp"))

	if failures := session.Release(nil); len(failures) != 0 {
		t.Fatalf("missing artifacts must not count as failures: %+v", failures)
	}
}

func TestRegisterDeduplicates(t *testing.T) {
	root := t.TempDir()
	session, err := NewSession(root)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	path := session.Path("clip.mp3")
	session.Register(path)
	session.Register(path)

	if got := session.Artifacts(); len(got) != 1 {
		t.Fatalf("expected 1 registered artifact, got %d", len(got))
	}
}
