package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"echopress/internal/api"
)

func buildRunRows(runs []api.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			runLabel(run),
			formatStatusLabel(run.Status),
			fmt.Sprintf("%.0f%%", run.Progress),
			formatDisplayTime(run.CreatedAt),
			run.ErrorKind,
		})
	}
	return rows
}

func runLabel(run api.Run) string {
	if title := strings.TrimSpace(run.Title); title != "" {
		return title
	}
	if ref := strings.TrimSpace(run.RecordingRef); ref != "" {
		return filepath.Base(ref)
	}
	return "Unknown"
}

func printRun(out io.Writer, run api.Run, colorize bool) {
	kind := statusInfo
	switch run.Status {
	case "completed":
		kind = statusOK
	case "failed":
		kind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Run", statusInfo, run.ID, colorize))
	fmt.Fprintln(out, renderStatusLine("Recording", statusInfo, run.RecordingRef, colorize))
	if run.Title != "" {
		fmt.Fprintln(out, renderStatusLine("Title", statusInfo, run.Title, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Status", kind, fmt.Sprintf("%s (%.0f%%)", formatStatusLabel(run.Status), run.Progress), colorize))
	if run.Stage != "" {
		fmt.Fprintln(out, renderStatusLine("Stage", statusInfo, run.Stage, colorize))
	}
	if run.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, run.ErrorKind+": "+run.ErrorMessage, colorize))
	}
	if run.DraftID != "" {
		fmt.Fprintln(out, renderStatusLine("Draft", statusOK, run.DraftID, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Created", statusInfo, formatDisplayTime(run.CreatedAt), colorize))
	if run.CompletedAt != "" {
		fmt.Fprintln(out, renderStatusLine("Finished", statusInfo, formatDisplayTime(run.CompletedAt), colorize))
	}
	if len(run.Log) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, entry := range run.Log {
		fmt.Fprintf(out, "  %s %-5s %s\n", formatDisplayTime(entry.Timestamp), strings.ToUpper(entry.Level), entry.Message)
	}
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.Local().Format("2006-01-02 15:04:05")
	}
	return value
}
