package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"echopress/internal/config"
	"echopress/internal/events"
	"echopress/internal/generation"
	"echopress/internal/logging"
	"echopress/internal/notifications"
	"echopress/internal/queue"
	"echopress/internal/recording"
	"echopress/internal/transcript"
)

// Deps bundles the collaborators runs are executed with.
type Deps struct {
	Resolver  *recording.Resolver
	Profiles  *recording.ProfileStore
	Segmenter *transcript.Segmenter
	Generator *generation.Generator
	Notifier  notifications.Service
	Events    *events.Registry
}

// Orchestrator owns every in-flight run and the stage order they follow.
type Orchestrator struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
	events   *events.Registry
	runLogs  *RunLogger
	gate     *admissionGate
	stages   []pipelineStage
	now      func() time.Time

	// submitMu serializes admission so duplicate submissions cannot race.
	submitMu sync.Mutex
	closed   bool

	mu          sync.RWMutex
	active      map[string]*job
	byRecording map[string]*job
	lastErr     error
	lastRun     *queue.Run

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator wires the stage handlers over deps. A nil notifier falls
// back to the configured ntfy service; a nil registry gets a private one.
func NewOrchestrator(cfg *config.Config, store *queue.Store, deps Deps, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	registry := deps.Events
	if registry == nil {
		registry = events.NewRegistry(cfg.Pipeline.ObserverBuffer)
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:         cfg,
		store:       store,
		logger:      logging.NewComponentLogger(logger, "orchestrator"),
		notifier:    notifier,
		events:      registry,
		runLogs:     NewRunLogger(cfg, logger),
		gate:        newAdmissionGate(cfg.Pipeline.MaxConcurrentTranscriptions),
		now:         func() time.Time { return time.Now().UTC() },
		active:      make(map[string]*job),
		byRecording: make(map[string]*job),
		baseCtx:     baseCtx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.stages = o.configureStages(deps)
	return o
}

// Events exposes the observer registry runs publish to.
func (o *Orchestrator) Events() *events.Registry {
	return o.events
}
