package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"echopress/internal/api"
	"echopress/internal/logging"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("EchoPress", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "EchoPress:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("EchoPress", statusOK, "Running", true)
	if !strings.HasPrefix(got, "\x1b[") || !strings.HasSuffix(got, "\x1b[0m") {
		t.Fatalf("expected ANSI wrapped line, got %q", got)
	}
	if !strings.Contains(got, "[OK] Running") {
		t.Fatalf("expected status text, got %q", got)
	}
	if plain := renderStatusLine("EchoPress", statusOK, "Running", false); strings.Contains(plain, "\x1b[") {
		t.Fatalf("plain line carries escapes: %q", plain)
	}
}

func TestRenderStatusLineUnknownKindFallsBackToInfo(t *testing.T) {
	if got := renderStatusLine("Queue", statusKind(42), "", false); !strings.HasSuffix(got, "[INFO]") {
		t.Fatalf("unexpected fallback %q", got)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader(" Runs ", false)
	if len(lines) != 2 || lines[0] != "== Runs ==" || lines[1] != "----------" {
		t.Fatalf("unexpected header %q", lines)
	}
}

func TestShouldColorizeHonoursNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if shouldColorize(os.Stdout) {
		t.Fatal("NO_COLOR should disable color")
	}
}

func TestStatusKindFromSeverity(t *testing.T) {
	cases := map[string]statusKind{
		"ok":      statusOK,
		" WARN ":  statusWarn,
		"warning": statusWarn,
		"error":   statusError,
		"":        statusInfo,
		"other":   statusInfo,
	}
	for in, want := range cases {
		if got := statusKindFromSeverity(in); got != want {
			t.Fatalf("statusKindFromSeverity(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestBuildRunRows(t *testing.T) {
	rows := buildRunRows([]api.Run{
		{ID: "r1", Title: "Pricing", Status: "transcribing", Progress: 42.4},
		{ID: "r2", RecordingRef: "/audio/ep-2.wav", Status: "failed", ErrorKind: "Transcription"},
		{ID: "r3", Status: "initialized"},
	})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][1] != "Pricing" || rows[0][2] != "Transcribing" || rows[0][3] != "42%" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	if rows[1][1] != "ep-2.wav" || rows[1][5] != "Transcription" {
		t.Fatalf("unexpected second row %v", rows[1])
	}
	if rows[2][1] != "Unknown" {
		t.Fatalf("expected Unknown label, got %q", rows[2][1])
	}
}

func TestFormatStatusLabel(t *testing.T) {
	if got := formatStatusLabel("generating_sections"); got != "Generating Sections" {
		t.Fatalf("formatStatusLabel = %q", got)
	}
	if got := formatStatusLabel("  "); got != "" {
		t.Fatalf("expected empty label, got %q", got)
	}
}

func TestFormatDisplayTimePassesThroughUnparsed(t *testing.T) {
	if got := formatDisplayTime("yesterday"); got != "yesterday" {
		t.Fatalf("formatDisplayTime = %q", got)
	}
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := stamp.Local().Format("2006-01-02 15:04:05")
	if got := formatDisplayTime(stamp.Format(time.RFC3339Nano)); got != want {
		t.Fatalf("formatDisplayTime = %q, want %q", got, want)
	}
}

func TestFormatLogEvent(t *testing.T) {
	evt := logging.LogEvent{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Level:     "warn",
		Message:   "banned term retry",
		Component: "generation",
		Stage:     "generating_sections",
		RunID:     "0123456789abcdef",
		Fields:    map[string]string{"section": "Pricing", "attempt": "2", "empty": " "},
	}
	got := formatLogEvent(evt)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two fields, got %q", got)
	}
	requireContains(t, lines[0], "WARN  [generation] run 01234567 (generating_sections) banned term retry")
	if lines[1] != "    - attempt: 2" || lines[2] != "    - section: Pricing" {
		t.Fatalf("fields not sorted: %q", lines[1:])
	}
}

func TestComposeSubject(t *testing.T) {
	if got := composeSubject("", "transcribing"); got != "transcribing" {
		t.Fatalf("composeSubject stage only = %q", got)
	}
	if got := composeSubject("abc", ""); got != "run abc" {
		t.Fatalf("composeSubject run only = %q", got)
	}
	if got := composeSubject("", ""); got != "" {
		t.Fatalf("composeSubject empty = %q", got)
	}
}
