package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"echopress/internal/api"
	"echopress/internal/config"
	"echopress/internal/deps"
	"echopress/internal/draft"
	"echopress/internal/logging"
	"echopress/internal/notifications"
	"echopress/internal/preflight"
	"echopress/internal/queue"
	"echopress/internal/workflow"
)

// shutdownGrace bounds how long Stop waits for in-flight runs.
const shutdownGrace = 30 * time.Second

// Daemon owns the orchestrator lifecycle and the single-instance lock.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	orch    *workflow.Orchestrator
	logPath string
	logHub  *logging.StreamHub

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu      sync.Mutex
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Orchestrator workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	SocketPath   string
	LogPath      string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, orch *workflow.Orchestrator, logPath string, hub *logging.StreamHub) (*Daemon, error) {
	if cfg == nil || store == nil || orch == nil {
		return nil, errors.New("daemon requires config, store, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		orch:     orch,
		logPath:  logPath,
		logHub:   hub,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted runs and opens the
// HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another echopress daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	recovered, err := d.orch.Recover(d.ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "run recovery failed", "run_recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the run database with echopress status"),
			logging.String(logging.FieldImpact, "runs from a previous process may still look active"),
		)
	}
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx, d.cancel = nil, nil
		return fmt.Errorf("start api: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("echopress daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Int("recovered_runs", recovered),
	)
	return nil
}

// Stop waits for in-flight runs, closes the HTTP API and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := d.orch.Shutdown(shutdownCtx); err != nil {
		logging.WarnWithContext(d.logger, "runs still active at shutdown", "daemon_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "interrupted runs are failed on the next start"),
			logging.String(logging.FieldImpact, "in-flight runs were cancelled"),
		)
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("echopress daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Orchestrator exposes the pipeline for event subscriptions.
func (d *Daemon) Orchestrator() *workflow.Orchestrator {
	return d.orch
}

// Submit starts (or reuses) a run for the request.
func (d *Daemon) Submit(ctx context.Context, req api.SubmitRequest) (string, error) {
	return d.orch.Submit(ctx, req.ToWorkflow())
}

// Poll returns the current snapshot of a run.
func (d *Daemon) Poll(ctx context.Context, runID string) (*queue.Run, error) {
	return d.orch.Poll(ctx, strings.TrimSpace(runID))
}

// Cancel requests cancellation of a run.
func (d *Daemon) Cancel(ctx context.Context, runID string) (bool, error) {
	return d.orch.Cancel(ctx, strings.TrimSpace(runID))
}

// List returns recent runs filtered by status names. Unknown names are
// ignored.
func (d *Daemon) List(ctx context.Context, limit int, statuses []string) ([]*queue.Run, error) {
	parsed := make([]queue.Status, 0, len(statuses))
	for _, value := range statuses {
		if status, ok := queue.ParseStatus(value); ok {
			parsed = append(parsed, status)
		}
	}
	return d.orch.List(ctx, limit, parsed...)
}

// Draft returns the finished draft of a completed run.
func (d *Daemon) Draft(ctx context.Context, runID string) (*draft.Draft, error) {
	return d.orch.Draft(ctx, strings.TrimSpace(runID))
}

// LogStream returns the in-memory log hub.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logHub
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// RunHealth returns aggregate run counts.
func (d *Daemon) RunHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Orchestrator: d.orch.Status(ctx),
		DatabasePath: d.cfg.QueueDBPath(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		LogPath:      d.logPath,
		Dependencies: preflight.CheckSystemDeps(ctx, d.cfg),
	}
}

// APIStatus converts Status into its wire form.
func (s Status) APIStatus() api.DaemonStatus {
	out := api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		DatabasePath: s.DatabasePath,
		LockFilePath: s.LockFilePath,
		SocketPath:   s.SocketPath,
		LogPath:      s.LogPath,
		Orchestrator: api.FromStatusSummary(s.Orchestrator),
		Dependencies: make([]api.DependencyStatus, 0, len(s.Dependencies)),
	}
	for _, dep := range s.Dependencies {
		out.Dependencies = append(out.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}
