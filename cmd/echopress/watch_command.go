package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"echopress/internal/api"
	"echopress/internal/apiclient"
	"echopress/internal/events"
	"echopress/internal/ipc"
	"echopress/internal/tui"
)

const plainPollInterval = time.Second

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "watch <run-id>",
		Short: "Follow a run until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if plain {
				return watchPlain(cmd, ctx, args[0])
			}
			return watchRun(cmd, ctx, args[0])
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print progress lines instead of the interactive view")
	return cmd
}

// watchRun shows the interactive view on a terminal and plain progress lines
// everywhere else.
func watchRun(cmd *cobra.Command, ctx *commandContext, runID string) error {
	if !isTerminal(cmd.OutOrStdout()) {
		return watchPlain(cmd, ctx, runID)
	}
	client, err := ctx.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	apiClient, err := ctx.apiClient()
	if err != nil {
		return err
	}

	opts := tui.Options{RunID: runID, Poll: ipcPoller(client)}
	if apiClient != nil {
		opts.Source = apiClient
	}
	model := tui.New(cmd.Context(), opts)
	final, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(tui.Model); ok {
		return runOutcome(m.Run())
	}
	return nil
}

func ipcPoller(client *ipc.Client) tui.Poller {
	return func(_ context.Context, runID string) (api.Run, error) {
		resp, err := client.Poll(runID)
		if err != nil {
			return api.Run{}, err
		}
		return resp.Run, nil
	}
}

func watchPlain(cmd *cobra.Command, ctx *commandContext, runID string) error {
	out := cmd.OutOrStdout()
	apiClient, err := ctx.apiClient()
	if err != nil {
		return err
	}
	if apiClient != nil {
		run, err := streamPlain(cmd.Context(), out, apiClient, runID)
		if err == nil {
			return runOutcome(run)
		}
		if !apiclient.IsUnavailable(err) {
			return err
		}
	}
	client, err := ctx.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	run, err := pollPlain(cmd.Context(), out, ipcPoller(client), runID, plainPollInterval)
	if err != nil {
		return err
	}
	return runOutcome(run)
}

func streamPlain(ctx context.Context, out io.Writer, client *apiclient.Client, runID string) (api.Run, error) {
	var run api.Run
	err := client.Events(ctx, runID, func(item apiclient.StreamItem) error {
		if item.Snapshot != nil {
			run = *item.Snapshot
			printProgressLine(out, run.Status, run.Stage, run.Progress, "")
		}
		if evt := item.Event; evt != nil {
			applyPlainEvent(&run, *evt)
			printEventLine(out, *evt)
		}
		return nil
	})
	return run, err
}

func pollPlain(ctx context.Context, out io.Writer, poll tui.Poller, runID string, interval time.Duration) (api.Run, error) {
	var last api.Run
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		run, err := poll(ctx, runID)
		if err != nil {
			return last, err
		}
		if run.Status != last.Status || run.Progress != last.Progress {
			printProgressLine(out, run.Status, run.Stage, run.Progress, "")
		}
		last = run
		if run.Status == "completed" || run.Status == "failed" {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

func applyPlainEvent(run *api.Run, evt api.Event) {
	switch evt.Type {
	case events.TypeProgress:
		if s, ok := evt.Payload["status"].(string); ok {
			run.Status = s
		}
		if p, ok := evt.Payload["progress"].(float64); ok {
			run.Progress = p
		}
	case events.TypeCompleted:
		run.Status = "completed"
		run.Progress = 100
		if id, ok := evt.Payload["draft_id"].(string); ok {
			run.DraftID = id
		}
	case events.TypeError:
		run.Status = "failed"
		run.ErrorKind, _ = evt.Payload["kind"].(string)
		run.ErrorMessage, _ = evt.Payload["error"].(string)
	}
}

func printEventLine(out io.Writer, evt api.Event) {
	message, _ := evt.Payload["message"].(string)
	switch evt.Type {
	case events.TypeProgress:
		status, _ := evt.Payload["status"].(string)
		stage, _ := evt.Payload["stage"].(string)
		progress, _ := evt.Payload["progress"].(float64)
		printProgressLine(out, status, stage, progress, message)
	case events.TypeLog:
		fmt.Fprintf(out, "        %s\n", message)
	case events.TypeCompleted:
		printProgressLine(out, "completed", "", 100, "")
	case events.TypeError:
		kind, _ := evt.Payload["kind"].(string)
		errText, _ := evt.Payload["error"].(string)
		fmt.Fprintf(out, "failed  %s: %s\n", kind, errText)
	}
}

func printProgressLine(out io.Writer, status, stage string, progress float64, message string) {
	line := fmt.Sprintf("[%3.0f%%] %s", progress, formatStatusLabel(status))
	if stage != "" && stage != status {
		line += " (" + stage + ")"
	}
	if message != "" {
		line += " " + message
	}
	fmt.Fprintln(out, line)
}

// runOutcome turns a failed run into a non-zero exit.
func runOutcome(run api.Run) error {
	if run.Status == "failed" {
		return fmt.Errorf("run %s failed: %s: %s", run.ID, run.ErrorKind, run.ErrorMessage)
	}
	return nil
}
