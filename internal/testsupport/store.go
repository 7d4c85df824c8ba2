package testsupport

import (
	"context"
	"testing"

	"redub/internal/config"
	"redub/internal/ledger"
)

// MustOpenStore opens a ledger.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun creates a fresh run record for tests using the provided store.
func NewRun(t testing.TB, store *ledger.Store, sourcePath, sourceLang, targetLang string) *ledger.Run {
	t.Helper()

	run, err := store.NewRun(context.Background(), sourcePath, sourceLang, targetLang)
	if err != nil {
		t.Fatalf("store.NewRun: %v", err)
	}
	return run
}
