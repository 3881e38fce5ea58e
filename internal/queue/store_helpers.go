package queue

import (
	"database/sql"
	"errors"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = "id, recording, recording_ref, title, status, stage, progress, error_kind, error_message, request_json, draft_id, created_at, updated_at, completed_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id           string
		recording    string
		recordingRef string
		title        sql.NullString
		statusStr    string
		stage        sql.NullString
		progress     sql.NullFloat64
		errorKind    sql.NullString
		errorMessage sql.NullString
		requestJSON  sql.NullString
		draftID      sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&recording,
		&recordingRef,
		&title,
		&statusStr,
		&stage,
		&progress,
		&errorKind,
		&errorMessage,
		&requestJSON,
		&draftID,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:           id,
		Recording:    recording,
		RecordingRef: recordingRef,
		Title:        title.String,
		Status:       Status(statusStr),
		Stage:        stage.String,
		Progress:     progress.Float64,
		ErrorKind:    errorKind.String,
		ErrorMessage: errorMessage.String,
		RequestJSON:  requestJSON.String,
		DraftID:      draftID.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			run.CompletedAt = &completed
		}
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeLayout)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		value = time.Now()
	}
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
