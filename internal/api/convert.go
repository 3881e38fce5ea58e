package api

import (
	"slices"
	"time"

	"echopress/internal/queue"
	"echopress/internal/stage"
	"echopress/internal/workflow"
)

// FromRun converts a run snapshot into its API representation.
func FromRun(run *queue.Run) Run {
	if run == nil {
		return Run{}
	}
	out := Run{
		ID:           run.ID,
		Recording:    run.Recording,
		RecordingRef: run.RecordingRef,
		Title:        run.Title,
		Status:       string(run.Status),
		Stage:        run.Stage,
		Progress:     run.Progress,
		ErrorKind:    run.ErrorKind,
		ErrorMessage: run.ErrorMessage,
		DraftID:      run.DraftID,
		CreatedAt:    FormatTime(run.CreatedAt),
		UpdatedAt:    FormatTime(run.UpdatedAt),
	}
	if run.CompletedAt != nil {
		out.CompletedAt = FormatTime(*run.CompletedAt)
	}
	if len(run.Log) > 0 {
		out.Log = make([]LogEntry, 0, len(run.Log))
		for _, entry := range run.Log {
			out.Log = append(out.Log, LogEntry{
				Timestamp: FormatTime(entry.Timestamp),
				Level:     entry.Level,
				Message:   entry.Message,
			})
		}
	}
	return out
}

// FromRuns converts a slice of runs, dropping their log trails.
func FromRuns(runs []*queue.Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, run := range runs {
		if run == nil {
			continue
		}
		converted := FromRun(run)
		converted.Log = nil
		out = append(out, converted)
	}
	return out
}

// ToWorkflow converts a submission into an orchestrator request.
func (r SubmitRequest) ToWorkflow() workflow.Request {
	return workflow.Request{
		RecordingRef: r.RecordingRef,
		Title:        r.Title,
		Language:     r.Language,
		Profile:      r.Profile,
		ProfileName:  r.ProfileName,
		Outline:      r.Outline,
		Force:        r.Force,
	}
}

// FromStatusSummary converts the orchestrator summary.
func FromStatusSummary(summary workflow.StatusSummary) OrchestratorStatus {
	stats := make(map[string]int, len(summary.RunStats))
	for status, count := range summary.RunStats {
		stats[string(status)] = count
	}
	out := OrchestratorStatus{
		Accepting:  summary.Accepting,
		ActiveRuns: summary.ActiveRuns,
		RunStats:   stats,
		LastError:  summary.LastError,
		Transcriptions: AdmissionStats{
			Limit:  summary.Transcriptions.Limit,
			Active: summary.Transcriptions.Active,
			Queued: summary.Transcriptions.Queued,
		},
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastRun != nil {
		last := FromRun(summary.LastRun)
		last.Log = nil
		out.LastRun = &last
	}
	return out
}

// StageHealthSlice returns stage health sorted by name.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FormatTime renders t in UTC, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
