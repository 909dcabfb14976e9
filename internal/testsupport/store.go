package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"reelforge/internal/config"
	"reelforge/internal/runs"
)

// MustOpenStore opens a runs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runs.Store {
	t.Helper()

	store, err := runs.Open(cfg)
	if err != nil {
		t.Fatalf("runs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun inserts a run with a fresh ID and the given theme and status.
func NewRun(t testing.TB, store *runs.Store, theme string, status runs.Status) *runs.Run {
	t.Helper()

	run := &runs.Run{ID: uuid.NewString(), Theme: theme, Status: status}
	if err := store.Create(context.Background(), run); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return run
}
