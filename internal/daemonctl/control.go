// Package daemonctl starts, stops and inspects the EchoPress daemon process on
// behalf of the CLI.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"echopress/internal/config"
	"echopress/internal/ipc"
	"echopress/internal/preflight"
	"echopress/internal/queue"
	"echopress/internal/staging"
)

// PIDFileName is written into the log directory while the daemon runs.
const PIDFileName = "echopressd.pid"

const dialRetry = 200 * time.Millisecond

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// StartResult captures daemon start orchestration state.
type StartResult struct {
	AlreadyRunning bool
	PID            int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// PIDPath returns the pid file location for cfg.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, PIDFileName)
}

// Launch starts a detached `<executable> daemon` process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(dialRetry)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless its socket already answers.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if client, err := ipc.Dial(socketPath); err == nil {
		defer client.Close()
		result := StartResult{AlreadyRunning: true}
		if status, err := client.Status(); err == nil {
			result.PID = status.PID
		}
		return result, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	client, err := WaitForClient(socketPath, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return StartResult{}, err
	}
	if !status.Running {
		return StartResult{PID: status.PID}, errors.New("daemon process started but the pipeline did not; check `echopress logs`")
	}
	return StartResult{PID: status.PID}, nil
}

// WaitForShutdown waits for the daemon socket to stop answering.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			return nil
		}
		_ = client.Close()
		time.Sleep(dialRetry)
	}
	return errors.New("daemon did not stop before the timeout")
}

// ProcessInfo reports whether daemon IPC is reachable and the daemon PID.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	return true, status.PID, nil
}

// ForceKillProcess sends SIGKILL to the daemon and removes its pid and lock
// files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	switch {
	case err == nil:
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	case !errors.Is(err, os.ErrNotExist):
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// StopAndTerminate asks the daemon to stop and kills it if it is still alive
// after gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	socketPath := cfg.SocketPath()
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if status, err := client.Status(); err == nil {
		pid = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, StopAcknowledged: resp.Stopped}

	if WaitForShutdown(socketPath, gracePeriod) == nil {
		return result, nil
	}
	killed, err := ForceKillProcess(PIDPath(cfg), cfg.LockPath(), pid)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killed
	return result, nil
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// StatusLine is one labelled readiness line in `echopress status`.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// Snapshot is everything `echopress status` renders.
type Snapshot struct {
	Daemon       ipc.StatusResponse
	RunStats     map[string]int
	SystemChecks []StatusLine
	Directories  []StatusLine
	Dependencies []StatusLine
	Summary      StatusLine
}

// BuildStatusSnapshot collects daemon status, reading run counts straight
// from the database when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{}
	if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
		if resp, statusErr := client.Status(); statusErr == nil {
			snap.Daemon = *resp
		}
		_ = client.Close()
	}

	snap.RunStats = snap.Daemon.Orchestrator.RunStats
	if !snap.Daemon.Running {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if store, err := queue.Open(cfg); err == nil {
			if stats, err := store.Stats(queryCtx); err == nil {
				snap.RunStats = make(map[string]int, len(stats))
				for status, count := range stats {
					snap.RunStats[string(status)] = count
				}
			}
			_ = store.Close()
		}
	}
	if len(snap.Daemon.Dependencies) == 0 {
		for _, dep := range preflight.CheckSystemDeps(ctx, cfg) {
			snap.Daemon.Dependencies = append(snap.Daemon.Dependencies, ipc.DependencyStatus{
				Name:        dep.Name,
				Command:     dep.Command,
				Description: dep.Description,
				Optional:    dep.Optional,
				Available:   dep.Available,
				Detail:      dep.Detail,
			})
		}
	}

	snap.SystemChecks = BuildSystemChecks(cfg, snap.Daemon)
	snap.Directories = BuildDirectoryChecks(cfg)
	snap.Dependencies = make([]StatusLine, 0, len(snap.Daemon.Dependencies))
	for _, dep := range snap.Daemon.Dependencies {
		line := StatusLine{Label: dep.Name, Severity: "ok", Detail: dep.Command}
		if !dep.Available {
			line.Severity = "error"
			if dep.Optional {
				line.Severity = "warn"
			}
			line.Detail = dep.Detail
		}
		snap.Dependencies = append(snap.Dependencies, line)
	}
	snap.Summary = BuildDependencySummary(snap.Daemon.Dependencies)
	return snap, nil
}

// BuildSystemChecks resolves status lines from runtime state and config.
func BuildSystemChecks(cfg *config.Config, status ipc.StatusResponse) []StatusLine {
	lines := make([]StatusLine, 0, 5)
	if status.Running {
		lines = append(lines, StatusLine{Label: "EchoPress", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", status.PID)})
		admission := status.Orchestrator.Transcriptions
		lines = append(lines, StatusLine{
			Label:    "Transcription slots",
			Severity: "ok",
			Detail:   fmt.Sprintf("%d/%d busy, %d waiting", admission.Active, admission.Limit, admission.Queued),
		})
	} else {
		lines = append(lines, StatusLine{Label: "EchoPress", Severity: "warn", Detail: "Not running (run `echopress start`)"})
	}

	if strings.TrimSpace(cfg.LLM.APIKey) != "" {
		lines = append(lines, StatusLine{Label: "Article LLM", Severity: "ok", Detail: cfg.LLM.Model})
	} else {
		lines = append(lines, StatusLine{Label: "Article LLM", Severity: "error", Detail: "API key missing (set llm.api_key)"})
	}

	switch cfg.Transcription.Provider {
	case "http":
		lines = append(lines, StatusLine{Label: "Transcription", Severity: "ok", Detail: "HTTP " + cfg.Transcription.ASRURL})
	default:
		lines = append(lines, StatusLine{Label: "Transcription", Severity: "ok", Detail: "WhisperX " + cfg.Transcription.WhisperXModel})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "info", Detail: "Not configured"})
	}
	return lines
}

// BuildDirectoryChecks reports readiness of the configured directories.
func BuildDirectoryChecks(cfg *config.Config) []StatusLine {
	dirs := []struct {
		label string
		path  string
	}{
		{label: "Staging", path: cfg.Paths.StagingDir},
		{label: "Drafts", path: cfg.Paths.DraftDir},
		{label: "Logs", path: cfg.Paths.LogDir},
	}
	lines := make([]StatusLine, 0, len(dirs))
	for _, dir := range dirs {
		result := preflight.CheckDirectoryAccess(dir.label, dir.path)
		severity := "error"
		if result.Passed {
			severity = "ok"
		}
		detail := result.Detail
		if dir.label == "Staging" && result.Passed {
			if usage, err := staging.MeasureUsage(dir.path); err == nil && usage.Entries > 0 {
				detail = fmt.Sprintf("%s (%d entries, %s)", detail, usage.Entries, formatBytes(usage.Bytes))
			}
		}
		lines = append(lines, StatusLine{Label: dir.label, Severity: severity, Detail: detail})
	}
	return lines
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(deps []ipc.DependencyStatus) StatusLine {
	if len(deps) == 0 {
		return StatusLine{Label: "Dependencies", Severity: "info", Detail: "No dependency checks configured"}
	}
	missingRequired, missingOptional := 0, 0
	for _, dep := range deps {
		switch {
		case dep.Available:
		case dep.Optional:
			missingOptional++
		default:
			missingRequired++
		}
	}
	available := len(deps) - missingRequired - missingOptional
	severity := "ok"
	switch {
	case missingRequired > 0:
		severity = "error"
	case missingOptional > 0:
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available", available, len(deps))
	if missingRequired+missingOptional > 0 {
		detail = fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(deps), missingRequired, missingOptional)
	}
	return StatusLine{Label: "Dependencies", Severity: severity, Detail: detail}
}
