package api

import (
	"testing"
	"time"

	"echopress/internal/queue"
	"echopress/internal/stage"
	"echopress/internal/workflow"
)

func TestFromRun(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := created.Add(90 * time.Second)
	run := &queue.Run{
		ID:           "run-1",
		Recording:    "/rec/a.mp3",
		RecordingRef: "a.mp3",
		Status:       queue.StatusCompleted,
		Stage:        "finalization",
		Progress:     100,
		DraftID:      "draft_a_v1",
		CreatedAt:    created,
		UpdatedAt:    completed,
		CompletedAt:  &completed,
		Log:          []queue.LogEntry{{Timestamp: created, Level: "info", Message: "run created"}},
	}

	got := FromRun(run)
	if got.Status != "completed" || got.DraftID != "draft_a_v1" {
		t.Fatalf("unexpected conversion: %+v", got)
	}
	if got.CreatedAt != "2026-03-01T10:00:00.000Z" {
		t.Fatalf("unexpected timestamp format %q", got.CreatedAt)
	}
	if got.CompletedAt == "" || len(got.Log) != 1 {
		t.Fatalf("missing completion or log: %+v", got)
	}
	if list := FromRuns([]*queue.Run{run, nil}); len(list) != 1 || list[0].Log != nil {
		t.Fatalf("FromRuns should drop nil runs and logs: %+v", list)
	}
}

func TestFromStatusSummarySortsStageHealth(t *testing.T) {
	summary := workflow.StatusSummary{
		Accepting: true,
		RunStats:  map[queue.Status]int{queue.StatusCompleted: 2},
		StageHealth: map[string]stage.Health{
			"transcription": stage.Unhealthy("transcription", "uvx missing"),
			"generation":    stage.Assess("generation"),
		},
		Transcriptions: workflow.AdmissionStats{Limit: 10, Active: 1},
	}
	got := FromStatusSummary(summary)
	if len(got.StageHealth) != 2 || got.StageHealth[0].Name != "generation" {
		t.Fatalf("stage health not sorted: %+v", got.StageHealth)
	}
	if got.StageHealth[1].Ready || got.StageHealth[1].Detail != "uvx missing" {
		t.Fatalf("unexpected transcription health: %+v", got.StageHealth[1])
	}
	if got.RunStats["completed"] != 2 || got.Transcriptions.Limit != 10 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestSubmitRequestToWorkflow(t *testing.T) {
	req := SubmitRequest{RecordingRef: "talk.mp3", Language: "en", Force: true}
	got := req.ToWorkflow()
	if got.RecordingRef != "talk.mp3" || got.Language != "en" || !got.Force {
		t.Fatalf("unexpected workflow request: %+v", got)
	}
}
