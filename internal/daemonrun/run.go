package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"echopress/internal/config"
	"echopress/internal/daemon"
	"echopress/internal/deps"
	"echopress/internal/generation"
	"echopress/internal/ipc"
	"echopress/internal/logging"
	"echopress/internal/notifications"
	"echopress/internal/preflight"
	"echopress/internal/queue"
	"echopress/internal/recording"
	"echopress/internal/services/llm"
	"echopress/internal/services/speechapi"
	"echopress/internal/services/whisperx"
	"echopress/internal/staging"
	"echopress/internal/transcript"
	"echopress/internal/workflow"
)

const (
	whisperxWorkDir = "whisperx"
	staleStagingAge = 7 * 24 * time.Hour
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the EchoPress daemon and blocks until a signal or an IPC stop
// request ends it.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("echopress-%s.log", stamp))
	logHub := logging.NewStreamHub(4096)

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		Stream:           logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(signalCtx, logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update echopress.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "echopress-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "runs"), Pattern: "*.log"},
	)
	cleanStaging(signalCtx, cfg, logger)

	pidPath := filepath.Join(cfg.Paths.LogDir, "echopressd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return err
	}

	orch := workflow.NewOrchestrator(cfg, store, BuildDeps(cfg, logger), logger)

	d, err := daemon.New(cfg, store, logger, orch, logPath, logHub)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger, ipc.WithShutdown(cancel))
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and run database access"),
			logging.String(logging.FieldImpact, "daemon will not accept conversions"),
		)
	}

	<-signalCtx.Done()
	logger.Info("echopress daemon shutting down")
	return nil
}

// BuildDeps constructs the transcription and generation providers selected by
// cfg and bundles them for the orchestrator.
func BuildDeps(cfg *config.Config, logger *slog.Logger) workflow.Deps {
	recognizer, diarizer := buildSpeech(cfg)
	llmCfg := cfg.GetLLM()
	client := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	})
	generator := generation.NewGenerator(client, generation.Options{
		TopK:              cfg.Generation.TopK,
		ConfidenceFloor:   cfg.Generation.ConfidenceFloor,
		BannedTermRetries: cfg.Generation.BannedTermRetries,
		MaxSections:       cfg.Generation.MaxSections,
	}, logger)

	var resolverOpts []recording.Option
	// A bare name means ffprobe was not found.
	if probe := deps.ResolveFFprobePath(); filepath.IsAbs(probe) {
		resolverOpts = append(resolverOpts, recording.WithProbe(probe))
	}

	return workflow.Deps{
		Resolver:  recording.NewResolver(cfg, logger, resolverOpts...),
		Profiles:  recording.NewProfileStore(cfg.Paths.ProfilesDir),
		Segmenter: transcript.NewSegmenter(recognizer, diarizer, logger),
		Generator: generator,
		Notifier:  notifications.NewService(cfg),
	}
}

func buildSpeech(cfg *config.Config) (transcript.Recognizer, transcript.Diarizer) {
	tc := cfg.Transcription
	if tc.Provider == "http" {
		client := speechapi.NewClient(speechapi.Config{
			ASRURL:         tc.ASRURL,
			DiarizationURL: tc.DiarizationURL,
			Timeout:        time.Duration(cfg.Pipeline.TranscriptionTimeoutSeconds) * time.Second,
		})
		if tc.Diarize && client.HasDiarizer() {
			return client, client
		}
		return client, nil
	}
	// WhisperX labels speakers itself when diarization is on, so no separate
	// diarizer is attached.
	service := whisperx.NewService(whisperx.Config{
		Model:       tc.WhisperXModel,
		CUDAEnabled: tc.WhisperXCUDAEnabled,
		VADMethod:   tc.WhisperXVADMethod,
		HFToken:     tc.HuggingFaceToken,
		Diarize:     tc.Diarize,
		WorkDir:     filepath.Join(cfg.Paths.StagingDir, whisperxWorkDir),
	}, deps.ResolveFFmpegPath())
	return service, nil
}

// cleanStaging runs before the orchestrator starts, so every WhisperX work
// directory still on disk belongs to a dead process.
func cleanStaging(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	orphaned := staging.CleanOrphaned(ctx, filepath.Join(cfg.Paths.StagingDir, whisperxWorkDir), "whisperx-*", logger)
	stale := staging.CleanStale(ctx, cfg.Paths.StagingDir, staleStagingAge, []string{whisperxWorkDir}, logger)
	if removed := len(orphaned.Removed) + len(stale.Removed); removed > 0 {
		logger.Info("staging cleanup complete",
			logging.Int("removed", removed),
			logging.Int("errors", len(orphaned.Errors)+len(stale.Errors)),
			logging.String(logging.FieldEventType, "staging_cleanup_summary"),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "echopress.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.String("llm_model", cfg.LLM.Model),
		logging.String("transcription_provider", cfg.Transcription.Provider),
		logging.Bool("diarize", cfg.Transcription.Diarize),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	statuses := preflight.CheckSystemDeps(ctx, cfg)
	for _, dep := range statuses {
		key := strings.ToLower(dep.Name) + "_available"
		attrs = append(attrs, logging.Bool(key, dep.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	for _, dep := range deps.Blocking(statuses) {
		logging.WarnWithContext(logger, "required binary missing", "dependency_missing",
			logging.String("dependency", dep.Name),
			logging.String("detail", dep.Detail),
			logging.String(logging.FieldErrorHint, "install "+dep.Command+" or switch transcription.provider to http"),
			logging.String(logging.FieldImpact, "transcription fails until the binary is available"),
		)
	}
}
