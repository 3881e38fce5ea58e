package testsupport

import (
	"context"
	"testing"
	"time"

	"echopress/internal/config"
	"echopress/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun inserts a run for recording in the given status.
func NewRun(t testing.TB, store *queue.Store, id, recording string, status queue.Status) *queue.Run {
	t.Helper()

	now := time.Now().UTC()
	run := &queue.Run{
		ID:           id,
		Recording:    recording,
		RecordingRef: recording,
		Status:       status,
		Stage:        status.Stage(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Log:          []queue.LogEntry{{Timestamp: now, Level: "info", Message: "run created"}},
	}
	if err := store.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("store.CreateRun: %v", err)
	}
	return run
}
