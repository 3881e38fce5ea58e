package ipc

import "echopress/internal/api"

// ServiceName is the JSON-RPC service prefix.
const ServiceName = "EchoPress"

// SubmitRequest asks the daemon to convert a recording.
type SubmitRequest = api.SubmitRequest

// SubmitResponse returns the run id assigned or reused.
type SubmitResponse = api.SubmitResponse

// RunRequest identifies a run.
type RunRequest struct {
	RunID string `json:"run_id"`
}

// PollResponse carries a run snapshot including its log trail.
type PollResponse = api.RunResponse

// CancelResponse reports whether cancellation was recorded.
type CancelResponse = api.CancelResponse

// ListRequest filters the run listing.
type ListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// ListResponse carries runs newest first.
type ListResponse = api.RunListResponse

// DraftRequest fetches a completed draft.
type DraftRequest struct {
	RunID    string `json:"run_id"`
	Markdown bool   `json:"markdown,omitempty"`
}

// DraftResponse carries the draft and optional Markdown rendering.
type DraftResponse = api.DraftResponse

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse aggregates daemon runtime information.
type StatusResponse = api.DaemonStatus

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth = api.StageHealth

// DependencyStatus captures availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	RunID      string `json:"run_id,omitempty"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// RunHealthRequest fetches aggregate run counts.
type RunHealthRequest struct{}

// RunHealthResponse reports aggregate run counts.
type RunHealthResponse struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalRuns        int      `json:"total_runs"`
	Error            string   `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
