package queue

import (
	"strings"
	"time"
)

// Status is the pipeline run state.
type Status string

const (
	StatusInitialized  Status = "initialized"
	StatusValidated    Status = "validated"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusGenerating   Status = "generating"
	StatusGenerated    Status = "generated"
	StatusFinalizing   Status = "finalizing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// InterruptedReason is recorded on runs that were in flight when the daemon stopped.
const InterruptedReason = "interrupted by daemon restart"

var allStatuses = []Status{
	StatusInitialized,
	StatusValidated,
	StatusTranscribing,
	StatusTranscribed,
	StatusGenerating,
	StatusGenerated,
	StatusFinalizing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusTranscribing: {},
	StatusGenerating:   {},
	StatusFinalizing:   {},
}

// AllStatuses returns every run status in pipeline order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether the status ends the run.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsProcessing reports whether a stage is actively executing.
func (s Status) IsProcessing() bool {
	_, ok := processingStatuses[s]
	return ok
}

// Stage returns the stage a status belongs to.
func (s Status) Stage() string {
	switch s {
	case StatusInitialized, StatusValidated:
		return "validation"
	case StatusTranscribing, StatusTranscribed:
		return "transcription"
	case StatusGenerating, StatusGenerated:
		return "generation"
	case StatusFinalizing, StatusCompleted:
		return "finalization"
	default:
		return ""
	}
}

// LogEntry is one timestamped line in a run's log trail.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Run is the persisted snapshot of one pipeline run.
type Run struct {
	ID           string     `json:"run_id"`
	Recording    string     `json:"recording"`
	RecordingRef string     `json:"recording_ref"`
	Title        string     `json:"title,omitempty"`
	Status       Status     `json:"status"`
	Stage        string     `json:"stage"`
	Progress     float64    `json:"progress"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
	RequestJSON  string     `json:"-"`
	DraftID      string     `json:"draft_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Log          []LogEntry `json:"log"`
}

// Clone returns a deep copy so callers cannot mutate shared snapshots.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	out := *r
	out.Log = append([]LogEntry(nil), r.Log...)
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		out.CompletedAt = &completed
	}
	return &out
}

// SetFailed moves the run to the failure sink.
func (r *Run) SetFailed(kind, message string, now time.Time) {
	r.Status = StatusFailed
	r.ErrorKind = kind
	r.ErrorMessage = message
	r.UpdatedAt = now
	r.CompletedAt = &now
}

// HealthSummary counts runs by coarse state.
type HealthSummary struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// DatabaseHealth describes the on-disk state of the run database.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	MissingColumns   []string `json:"missing_columns,omitempty"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalRuns        int      `json:"total_runs"`
	Error            string   `json:"error,omitempty"`
}
