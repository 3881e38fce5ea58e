package queueaccess_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"echopress/internal/ipc"
	"echopress/internal/queue"
	"echopress/internal/queueaccess"
	"echopress/internal/testsupport"
)

func TestOpenUsesStoreWhenDaemonDown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	seed := testsupport.MustOpenStore(t, cfg)
	testsupport.NewRun(t, seed, "run-done", "/audio/a.wav", queue.StatusCompleted)
	testsupport.NewRun(t, seed, "run-bad", "/audio/b.wav", queue.StatusFailed)

	dialed := false
	session, err := queueaccess.Open(
		func() (*ipc.Client, error) {
			dialed = true
			return nil, errors.New("connection refused")
		},
		func() (*queue.Store, error) { return queue.Open(cfg) },
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	if !dialed {
		t.Fatal("expected IPC to be tried first")
	}
	access := session.Access
	if access.Online() {
		t.Fatal("store access should report offline")
	}
	if session.Offline == nil || session.Offline.Error() != "connection refused" {
		t.Fatalf("expected dial error on session, got %v", session.Offline)
	}

	ctx := context.Background()
	runs, err := access.List(ctx, []string{"failed", "bogus"}, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-bad" {
		t.Fatalf("expected only the failed run, got %+v", runs)
	}

	run, err := access.Get(ctx, " run-done ")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != string(queue.StatusCompleted) {
		t.Fatalf("unexpected status %q", run.Status)
	}
	if _, err := access.Get(ctx, "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}

	stats, err := access.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["completed"] != 1 || stats["failed"] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestOpenReportsBothFailures(t *testing.T) {
	_, err := queueaccess.Open(nil, nil)
	if err == nil || !strings.Contains(err.Error(), "no store opener") {
		t.Fatalf("expected opener error, got %v", err)
	}
	refused := errors.New("connection refused")
	_, err = queueaccess.Open(
		func() (*ipc.Client, error) { return nil, refused },
		func() (*queue.Store, error) { return nil, errors.New("disk full") },
	)
	if !errors.Is(err, refused) || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected both causes, got %v", err)
	}
}
