package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"echopress/internal/logging"
	"echopress/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var component string
	var runID string

	cmd := &cobra.Command{
		Use:     "logs",
		Aliases: []string{"show"},
		Short:   "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			// The socket is only needed when the API is disabled or down.
			var fallback logstream.TailClient
			client, dialErr := ctx.dialClient()
			if dialErr == nil {
				defer client.Close()
				fallback = client
			}

			out := cmd.OutOrStdout()
			printed, err := logstream.Stream(cmd.Context(), apiClient, fallback, logstream.Options{
				Lines:   lines,
				Follow:  follow,
				Filters: logstream.Filters{Component: component, RunID: runID},
			}, func(evt logging.LogEvent) {
				fmt.Fprintln(out, formatLogEvent(evt))
			}, func(line string) {
				fmt.Fprintln(out, line)
			})
			if err != nil {
				if fallback == nil && dialErr != nil {
					return dialErr
				}
				return err
			}
			if !printed {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&component, "component", "", "Only show one component (API only)")
	cmd.Flags().StringVar(&runID, "run", "", "Only show one run")
	return cmd
}

func formatLogEvent(evt logging.LogEvent) string {
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{evt.Timestamp.Local().Format("2006-01-02 15:04:05"), fmt.Sprintf("%-5s", level)}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, "["+component+"]")
	}
	if subject := composeSubject(evt.RunID, evt.Stage); subject != "" {
		parts = append(parts, subject)
	}
	line := strings.Join(parts, " ")
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += " " + message
	}
	if len(evt.Fields) == 0 {
		return line
	}
	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(line)
	for _, key := range keys {
		value := strings.TrimSpace(evt.Fields[key])
		if value == "" {
			continue
		}
		b.WriteString("\n    - ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
	}
	return b.String()
}

func composeSubject(runID, stage string) string {
	runID = strings.TrimSpace(runID)
	if len(runID) > 8 {
		runID = runID[:8]
	}
	stage = strings.TrimSpace(stage)
	switch {
	case runID != "" && stage != "":
		return fmt.Sprintf("run %s (%s)", runID, stage)
	case runID != "":
		return "run " + runID
	default:
		return stage
	}
}

