package api

import (
	"echopress/internal/draft"
	"echopress/internal/events"
	"echopress/internal/generation"
	"echopress/internal/logging"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Run describes a pipeline run in a transport-friendly format.
type Run struct {
	ID           string     `json:"run_id"`
	Recording    string     `json:"recording"`
	RecordingRef string     `json:"recording_ref"`
	Title        string     `json:"title,omitempty"`
	Status       string     `json:"status"`
	Stage        string     `json:"stage"`
	Progress     float64    `json:"progress"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
	DraftID      string     `json:"draft_id,omitempty"`
	CreatedAt    string     `json:"created_at,omitempty"`
	UpdatedAt    string     `json:"updated_at,omitempty"`
	CompletedAt  string     `json:"completed_at,omitempty"`
	Log          []LogEntry `json:"log,omitempty"`
}

// LogEntry is one line of a run's log trail.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// SubmitRequest is the payload of POST /api/runs and the IPC Submit call.
type SubmitRequest struct {
	RecordingRef string              `json:"recording_ref"`
	Title        string              `json:"title,omitempty"`
	Language     string              `json:"language,omitempty"`
	ProfileName  string              `json:"profile_name,omitempty"`
	Profile      *generation.Style   `json:"profile,omitempty"`
	Outline      *generation.Outline `json:"outline,omitempty"`
	Force        bool                `json:"force,omitempty"`
}

// SubmitResponse carries the run id assigned (or reused) for a submission.
type SubmitResponse struct {
	RunID string `json:"run_id"`
	Run   *Run   `json:"run,omitempty"`
}

// CancelResponse reports whether a cancel request was recorded.
type CancelResponse struct {
	RunID     string `json:"run_id"`
	Cancelled bool   `json:"cancelled"`
}

// RunResponse wraps a single run.
type RunResponse struct {
	Run Run `json:"run"`
}

// RunListResponse wraps a collection of runs.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// DraftResponse carries a finished draft and, when requested, its Markdown
// rendering.
type DraftResponse struct {
	Draft    *draft.Draft `json:"draft,omitempty"`
	Markdown string       `json:"markdown,omitempty"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// AdmissionStats describes the transcription admission gate.
type AdmissionStats struct {
	Limit  int `json:"limit"`
	Active int `json:"active"`
	Queued int `json:"queued"`
}

// OrchestratorStatus summarizes orchestrator state.
type OrchestratorStatus struct {
	Accepting      bool           `json:"accepting"`
	ActiveRuns     int            `json:"active_runs"`
	RunStats       map[string]int `json:"run_stats"`
	LastError      string         `json:"last_error,omitempty"`
	LastRun        *Run           `json:"last_run,omitempty"`
	Transcriptions AdmissionStats `json:"transcriptions"`
	StageHealth    []StageHealth  `json:"stage_health"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	SocketPath   string             `json:"socket_path"`
	LogPath      string             `json:"log_path,omitempty"`
	Orchestrator OrchestratorStatus `json:"orchestrator"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// LogStreamResponse is a page of daemon log events.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// Event is a run lifecycle event as streamed over SSE.
type Event = events.Event
