package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"echopress/internal/draft"
	"echopress/internal/generation"
	"echopress/internal/queue"
	"echopress/internal/testsupport"
	"echopress/internal/transcript"
)

func TestRunRoundTripWithLogs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := testsupport.NewRun(t, store, "run-1", "/audio/ep.mp3", queue.StatusInitialized)
	run.Status = queue.StatusTranscribing
	run.Stage = run.Status.Stage()
	run.Progress = 10
	run.UpdatedAt = time.Now().UTC()
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := store.AppendLog(ctx, run.ID, queue.LogEntry{Timestamp: time.Now(), Level: "info", Message: "transcribing"}); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}

	fetched, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if fetched == nil || fetched.Status != queue.StatusTranscribing || fetched.Stage != "transcription" || fetched.Progress != 10 {
		t.Fatalf("unexpected run %#v", fetched)
	}
	if len(fetched.Log) != 2 || fetched.Log[1].Message != "transcribing" {
		t.Fatalf("unexpected log %#v", fetched.Log)
	}

	missing, err := store.GetRun(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing run, got %#v, %v", missing, err)
	}
}

func TestFindActiveByRecordingSkipsFailedRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewRun(t, store, "old-failed", "ep.mp3", queue.StatusFailed)
	found, err := store.FindActiveByRecording(ctx, "ep.mp3")
	if err != nil {
		t.Fatalf("FindActiveByRecording: %v", err)
	}
	if found != nil {
		t.Fatalf("failed run should not be reused, got %s", found.ID)
	}

	testsupport.NewRun(t, store, "done", "ep.mp3", queue.StatusCompleted)
	found, err = store.FindActiveByRecording(ctx, "ep.mp3")
	if err != nil {
		t.Fatalf("FindActiveByRecording: %v", err)
	}
	if found == nil || found.ID != "done" {
		t.Fatalf("expected completed run, got %#v", found)
	}
}

func TestListRunsFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewRun(t, store, "a", "a.mp3", queue.StatusCompleted)
	testsupport.NewRun(t, store, "b", "b.mp3", queue.StatusGenerating)
	testsupport.NewRun(t, store, "c", "c.mp3", queue.StatusFailed)

	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	active, err := store.ListRuns(ctx, 10, queue.StatusGenerating, queue.StatusTranscribing)
	if err != nil {
		t.Fatalf("ListRuns filtered: %v", err)
	}
	if len(active) != 1 || active[0].ID != "b" {
		t.Fatalf("unexpected filtered runs %#v", active)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 3 || health.Completed != 1 || health.Failed != 1 || health.Active != 1 || health.Processing != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestMarkInterruptedFailsActiveRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewRun(t, store, "running", "a.mp3", queue.StatusTranscribing)
	testsupport.NewRun(t, store, "finished", "b.mp3", queue.StatusCompleted)

	interrupted, err := store.MarkInterrupted(ctx)
	if err != nil {
		t.Fatalf("MarkInterrupted: %v", err)
	}
	if len(interrupted) != 1 || interrupted[0].ID != "running" {
		t.Fatalf("unexpected interrupted runs %#v", interrupted)
	}
	run, err := store.GetRun(ctx, "running")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != queue.StatusFailed || run.ErrorMessage != queue.InterruptedReason || run.CompletedAt == nil {
		t.Fatalf("run not failed: %#v", run)
	}
	if last := run.Log[len(run.Log)-1]; last.Message != queue.InterruptedReason {
		t.Fatalf("expected interruption log entry, got %#v", last)
	}
	finished, _ := store.GetRun(ctx, "finished")
	if finished.Status != queue.StatusCompleted {
		t.Fatalf("completed run touched: %#v", finished)
	}
}

func TestPruneRunsKeepsNewestTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		testsupport.NewRun(t, store, fmt.Sprintf("done-%d", i), fmt.Sprintf("%d.mp3", i), queue.StatusCompleted)
		time.Sleep(2 * time.Millisecond)
	}
	testsupport.NewRun(t, store, "live", "live.mp3", queue.StatusGenerating)

	removed, err := store.PruneRuns(ctx, 2)
	if err != nil {
		t.Fatalf("PruneRuns: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 pruned, got %d", removed)
	}
	if run, _ := store.GetRun(ctx, "done-0"); run != nil {
		t.Fatal("oldest run should be pruned")
	}
	if run, _ := store.GetRun(ctx, "live"); run == nil {
		t.Fatal("active run must never be pruned")
	}
}

func TestSegmentCheckpoints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, ok, err := store.LoadSegments(ctx, "ep.mp3", "en"); err != nil || ok {
		t.Fatalf("expected no checkpoint, ok=%v err=%v", ok, err)
	}
	segments := []transcript.Segment{{StartMS: 0, EndMS: 1000, Text: "hello", Speaker: "SPEAKER_00", Confidence: 0.8}}
	if err := store.SaveSegments(ctx, "ep.mp3", "en", segments); err != nil {
		t.Fatalf("SaveSegments: %v", err)
	}
	segments[0].Text = "hello again"
	if err := store.SaveSegments(ctx, "ep.mp3", "en", segments); err != nil {
		t.Fatalf("SaveSegments overwrite: %v", err)
	}
	loaded, ok, err := store.LoadSegments(ctx, "ep.mp3", "en")
	if err != nil || !ok {
		t.Fatalf("LoadSegments: ok=%v err=%v", ok, err)
	}
	if len(loaded) != 1 || loaded[0].Text != "hello again" || loaded[0].Speaker != "SPEAKER_00" {
		t.Fatalf("unexpected segments %#v", loaded)
	}
	if _, ok, _ := store.LoadSegments(ctx, "ep.mp3", "de"); ok {
		t.Fatal("checkpoint should be language specific")
	}
}

func TestDraftRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewRun(t, store, "run-1", "ep.mp3", queue.StatusFinalizing)

	d := draft.Draft{
		ID:        draft.ID("ep.mp3", "run-1"),
		RunID:     "run-1",
		Recording: "ep.mp3",
		Title:     "Title",
		Sections: []generation.Section{{
			Title:     "One",
			Content:   "Body",
			Citations: []generation.Citation{{Text: "x", StartMS: 0, EndMS: 10, Confidence: 0.5, Section: "One"}},
		}},
		Ledger:   []generation.Citation{{Text: "x", StartMS: 0, EndMS: 10, Confidence: 0.5, Section: "One"}},
		Metadata: draft.Metadata{CitationCount: 1, GeneratedAt: time.Now().UTC()},
	}
	if err := store.SaveDraft(ctx, d); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	loaded, err := store.GetDraft(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if loaded == nil || loaded.ID != "draft_ep_run1_v1" || len(loaded.Ledger) != 1 {
		t.Fatalf("unexpected draft %#v", loaded)
	}
	if missing, err := store.GetDraft(ctx, "other"); err != nil || missing != nil {
		t.Fatalf("expected nil draft, got %#v, %v", missing, err)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health %+v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("unexpected missing columns %v", health.MissingColumns)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.NewRun(t, store, "persisted", "ep.mp3", queue.StatusCompleted)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	run, err := reopened.GetRun(context.Background(), "persisted")
	if err != nil || run == nil {
		t.Fatalf("expected run after reopen, got %#v, %v", run, err)
	}
}
