package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"redub/internal/logging"
)

// Session owns the temporary artifacts of one pipeline run. Its directory is
// named by a fresh UUID so concurrent runs sharing a staging root never
// collide. Every artifact created mid-run is registered and released on both
// the success and failure exit paths.
type Session struct {
	id  string
	dir string

	mu        sync.Mutex
	artifacts []string
}

// NewSession creates a request-scoped staging directory under root.
func NewSession(root string) (*Session, error) {
	if root == "" {
		return nil, fmt.Errorf("staging root required")
	}
	id := uuid.NewString()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &Session{id: id, dir: dir}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Dir returns the session's scratch directory.
func (s *Session) Dir() string { return s.dir }

// Path returns a path inside the session directory without creating or
// registering anything.
func (s *Session) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Register adds a path to the cleanup list. Registering the same path twice
// is harmless.
func (s *Session) Register(path string) {
	if path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.artifacts {
		if existing == path {
			return
		}
	}
	s.artifacts = append(s.artifacts, path)
}

// TempPath returns a registered path inside the session directory.
func (s *Session) TempPath(name string) string {
	path := s.Path(name)
	s.Register(path)
	return path
}

// Artifacts returns a copy of the registered cleanup list.
func (s *Session) Artifacts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(s.artifacts))
	copy(cp, s.artifacts)
	return cp
}

// Release removes every registered artifact and then the session directory.
// Removal is best-effort: failures are logged as warnings and collected, but
// never escalate — cleanup must not override the run's primary outcome.
func (s *Session) Release(logger *slog.Logger) []CleanupError {
	if logger == nil {
		logger = logging.NewNop()
	}

	s.mu.Lock()
	artifacts := s.artifacts
	s.artifacts = nil
	s.mu.Unlock()

	var failures []CleanupError
	for _, path := range artifacts {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			failures = append(failures, CleanupError{Path: path, Error: err})
			logger.Warn("failed to remove staging artifact",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
	}
	if err := os.RemoveAll(s.dir); err != nil {
		failures = append(failures, CleanupError{Path: s.dir, Error: err})
		logger.Warn("failed to remove staging directory",
			logging.String("path", s.dir),
			logging.Error(err),
			logging.String(logging.FieldEventType, "staging_cleanup_failed"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
	}
	return failures
}
