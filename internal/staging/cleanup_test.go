package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"echopress/internal/logging"
)

func age(t *testing.T, path string, d time.Duration) {
	t.Helper()
	stamp := time.Now().Add(-d)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldDownloads(t *testing.T) {
	dir := t.TempDir()
	oldFile := filepath.Join(dir, "episode-12.mp3")
	recentFile := filepath.Join(dir, "episode-13.mp3")
	workDir := filepath.Join(dir, "whisperx")
	for _, path := range []string{oldFile, recentFile} {
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	if err := os.Mkdir(workDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	age(t, oldFile, 48*time.Hour)
	age(t, workDir, 48*time.Hour)

	result := CleanStale(context.Background(), dir, 24*time.Hour, []string{"whisperx"}, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != oldFile {
		t.Fatalf("expected only %s removed, got %v", oldFile, result.Removed)
	}
	if _, err := os.Stat(recentFile); err != nil {
		t.Fatalf("recent download should remain: %v", err)
	}
	if _, err := os.Stat(workDir); err != nil {
		t.Fatalf("kept work dir should remain: %v", err)
	}
}

func TestCleanStaleStopsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.wav")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	age(t, path, 48*time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if result := CleanStale(ctx, dir, time.Hour, nil, nil); len(result.Removed) != 0 {
		t.Fatalf("expected nothing removed after cancel, got %v", result.Removed)
	}
}

func TestCleanOrphanedMatchesPattern(t *testing.T) {
	dir := t.TempDir()
	leftover := filepath.Join(dir, "whisperx-123")
	other := filepath.Join(dir, "notes")
	stray := filepath.Join(dir, "whisperx-file")
	for _, d := range []string{leftover, other} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	if err := os.WriteFile(stray, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result := CleanOrphaned(context.Background(), dir, "whisperx-*", logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != leftover {
		t.Fatalf("expected %s removed, got %v", leftover, result.Removed)
	}
	for _, path := range []string{other, stray} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("%s should remain: %v", path, err)
		}
	}
}

func TestMeasureUsage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.wav"), make([]byte, 100), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sub := filepath.Join(dir, "whisperx", "whisperx-1")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "out.json"), make([]byte, 50), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	usage, err := MeasureUsage(dir)
	if err != nil {
		t.Fatalf("MeasureUsage: %v", err)
	}
	if usage.Entries != 2 || usage.Bytes != 150 {
		t.Fatalf("unexpected usage %+v", usage)
	}

	missing, err := MeasureUsage(filepath.Join(dir, "absent"))
	if err != nil || missing != (Usage{}) {
		t.Fatalf("expected zero usage for missing dir, got %+v, %v", missing, err)
	}
}
