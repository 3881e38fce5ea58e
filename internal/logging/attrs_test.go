package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"echopress/internal/logging"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record %q: %v", buf.String(), err)
	}
	return record
}

func TestWarnWithContextFillsMissingFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "speaker profile skipped", "profile_skipped",
		logging.String(logging.FieldErrorHint, "re-enroll the host"))

	record := decodeRecord(t, &buf)
	if record[logging.FieldEventType] != "profile_skipped" {
		t.Fatalf("unexpected event type %v", record[logging.FieldEventType])
	}
	if record[logging.FieldErrorHint] != "re-enroll the host" {
		t.Fatalf("caller hint should win, got %v", record[logging.FieldErrorHint])
	}
	if record[logging.FieldImpact] != "run continues without this step" {
		t.Fatalf("unexpected impact %v", record[logging.FieldImpact])
	}
}

func TestErrorWithContextReportsStageImpact(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	attrs := []logging.Attr{logging.String(logging.FieldStage, "generation")}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)

	record := decodeRecord(t, &buf)
	if record["level"] != "ERROR" || record[logging.FieldImpact] != "run stops at the current stage" {
		t.Fatalf("unexpected record %v", record)
	}
	if len(attrs) != 1 {
		t.Fatalf("caller attrs were modified: %v", attrs)
	}
}

func TestNilLoggerIsIgnored(t *testing.T) {
	logging.WarnWithContext(nil, "ignored", "noop")
	logging.ErrorWithContext(nil, "ignored", "noop")
	logging.NewComponentLogger(nil, "daemon").Info("discarded")
}
