package workflow

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"echopress/internal/config"
	"echopress/internal/logging"
	"echopress/internal/queue"
	"echopress/internal/textutil"
)

// RunLogger gives every run a dedicated log file under <log_dir>/runs while
// still writing to the daemon logger.
type RunLogger struct {
	baseDir string
	level   string
	base    *slog.Logger
}

// NewRunLogger creates a run logger rooted at the configured log directory.
func NewRunLogger(cfg *config.Config, base *slog.Logger) *RunLogger {
	dir := ""
	level := "info"
	if cfg != nil {
		if strings.TrimSpace(cfg.Paths.LogDir) != "" {
			dir = filepath.Join(cfg.Paths.LogDir, "runs")
		}
		if strings.TrimSpace(cfg.Logging.Level) != "" {
			level = cfg.Logging.Level
		}
	}
	if base == nil {
		base = logging.NewNop()
	}
	return &RunLogger{baseDir: dir, level: level, base: base}
}

// Path returns the log file path for a run.
func (r *RunLogger) Path(run *queue.Run) string {
	if r == nil || r.baseDir == "" || run == nil {
		return ""
	}
	return filepath.Join(r.baseDir, r.filename(run))
}

// Open returns a logger tagged with the run id that writes to both the daemon
// log and the run file, plus the func that closes the file. When the file
// cannot be opened the daemon logger alone is returned.
func (r *RunLogger) Open(run *queue.Run) (*slog.Logger, func()) {
	base := logging.NewComponentLogger(r.base, "run").With(logging.String(logging.FieldRunID, run.ID))
	path := r.Path(run)
	if path == "" {
		return base, func() {}
	}
	handler, closer, err := logging.NewFileHandler(path, r.level)
	if err != nil {
		logging.WarnWithContext(base, "run log unavailable", "run_log_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
			logging.String(logging.FieldImpact, "run logs only go to the daemon log"),
		)
		return base, func() {}
	}
	fileLogger := slog.New(handler).With(
		logging.String(logging.FieldComponent, "run"),
		logging.String(logging.FieldRunID, run.ID),
	)
	return logging.Tee(base, fileLogger.Handler()), func() { _ = closer.Close() }
}

func (r *RunLogger) filename(run *queue.Run) string {
	timestamp := run.CreatedAt.UTC().Format("20060102T150405")
	title := strings.ReplaceAll(textutil.Slug(run.Title), "_", "-")
	id := run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s.log", timestamp, id, title)
}
