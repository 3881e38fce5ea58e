package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"echopress/internal/daemonctl"
	"echopress/internal/daemonrun"
)

const (
	startTimeout = 10 * time.Second
	stopGrace    = 35 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the echopress daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startDaemon(cmd.OutOrStdout(), ctx)
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the echopress daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopDaemon(cmd.OutOrStdout(), ctx)
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the echopress daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if err := stopDaemon(out, ctx); err != nil {
				return err
			}
			return startDaemon(out, ctx)
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show system status, or the status of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showRunStatus(cmd, ctx, args[0], statusJSON)
			}
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}
			renderSnapshot(cmd.OutOrStdout(), snap, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var development bool
	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Run the echopress daemon in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.logLevel(),
				Development: development,
			})
		},
	}
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log output")
	return cmd
}

func startDaemon(out io.Writer, ctx *commandContext) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   ctx.logLevel(),
	}, startTimeout)
	if err != nil {
		return err
	}
	if result.AlreadyRunning {
		fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
		return nil
	}
	fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
	return nil
}

func stopDaemon(out io.Writer, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	result, err := daemonctl.StopAndTerminate(cfg, stopGrace)
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	if result.ForcedKill {
		fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
		return nil
	}
	fmt.Fprintln(out, "Daemon stopped")
	return nil
}

func renderSnapshot(out io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	section := func(title string, lines []daemonctl.StatusLine) {
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(out, line)
		}
		for _, line := range lines {
			fmt.Fprintln(out, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
		}
		fmt.Fprintln(out)
	}
	section("System Status", snap.SystemChecks)
	section("Directories", snap.Directories)
	section("Dependencies", append([]daemonctl.StatusLine{snap.Summary}, snap.Dependencies...))

	for _, line := range renderSectionHeader("Runs", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := buildRunStatsRows(snap.RunStats)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No runs yet")
		return
	}
	fmt.Fprint(out, renderTable([]column{left("Status"), numeric("Count")}, rows))
}

func buildRunStatsRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(stats[key])})
	}
	return rows
}
