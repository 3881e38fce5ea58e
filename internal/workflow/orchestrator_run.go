package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"echopress/internal/events"
	"echopress/internal/generation"
	"echopress/internal/logging"
	"echopress/internal/queue"
	"echopress/internal/recording"
	"echopress/internal/services"
)

// Request is one conversion submission.
type Request struct {
	RecordingRef string `json:"recording_ref"`
	Title        string `json:"title,omitempty"`
	Language     string `json:"language,omitempty"`
	// Profile is an inline voice profile; ProfileName loads one from profiles_dir.
	// When both are set the named profile's banned terms are merged in.
	Profile     *generation.Style   `json:"profile,omitempty"`
	ProfileName string              `json:"profile_name,omitempty"`
	Outline     *generation.Outline `json:"outline,omitempty"`
	// Force starts a new run even when a completed run exists for the recording.
	Force bool `json:"force,omitempty"`
}

// ErrShuttingDown is returned by Submit after Shutdown has begun.
var ErrShuttingDown = errors.New("orchestrator shutting down")

// Submit starts a run for req and returns its id. Submitting a recording that
// already has an active or completed run returns that run's id instead.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (string, error) {
	req.RecordingRef = strings.TrimSpace(req.RecordingRef)
	if req.RecordingRef == "" {
		return "", services.Wrap(services.ErrInput, "validation", "submit", "recording reference is required", nil)
	}
	identity := recording.Identity(req.RecordingRef)

	o.submitMu.Lock()
	defer o.submitMu.Unlock()
	if o.closed {
		return "", ErrShuttingDown
	}

	o.mu.RLock()
	existing := o.byRecording[identity]
	var existingID string
	if existing != nil {
		existingID = existing.run.ID
	}
	o.mu.RUnlock()
	if existing != nil {
		o.logger.Info("duplicate submission joined active run",
			logging.String(logging.FieldEventType, "submit_deduplicated"),
			logging.String(logging.FieldRunID, existingID),
			logging.String(logging.FieldRecording, identity),
		)
		return existingID, nil
	}

	stored, err := o.store.FindActiveByRecording(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("lookup active run: %w", err)
	}
	if stored != nil && (!stored.Status.IsTerminal() || !req.Force) {
		o.logger.Info("submission matched stored run",
			logging.String(logging.FieldEventType, "submit_deduplicated"),
			logging.String(logging.FieldRunID, stored.ID),
			logging.String("status", string(stored.Status)),
		)
		return stored.ID, nil
	}

	now := o.now()
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = recording.DisplayTitle(req.RecordingRef)
	}
	requestJSON, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	run := &queue.Run{
		ID:           uuid.NewString(),
		Recording:    identity,
		RecordingRef: req.RecordingRef,
		Title:        title,
		Status:       queue.StatusInitialized,
		Stage:        queue.StatusInitialized.Stage(),
		RequestJSON:  string(requestJSON),
		CreatedAt:    now,
		UpdatedAt:    now,
		Log:          []queue.LogEntry{{Timestamp: now, Level: "info", Message: "run created"}},
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("persist run: %w", err)
	}

	runCtx := services.WithRunID(o.baseCtx, run.ID)
	runCtx = services.WithRecording(runCtx, identity)
	runCtx = services.WithRequestID(runCtx, uuid.NewString())

	j := &job{run: run, req: req}
	j.logger, j.closeLog = o.runLogs.Open(run)
	j.logger = logging.WithContext(runCtx, j.logger)
	j.record = func(level, message string) { o.note(runCtx, j, level, message) }
	j.progress = func(value float64, message string) { o.advance(runCtx, j, value, message) }

	o.mu.Lock()
	o.active[run.ID] = j
	o.byRecording[identity] = j
	snapshot := run.Clone()
	o.lastRun = snapshot
	o.mu.Unlock()

	j.logger.Info("run submitted",
		logging.String(logging.FieldEventType, "run_submitted"),
		logging.String("recording_ref", req.RecordingRef),
		logging.String("title", title),
	)
	o.publish(snapshot, events.TypeProgress, map[string]any{
		"status":   string(snapshot.Status),
		"stage":    snapshot.Stage,
		"progress": snapshot.Progress,
		"message":  "run created",
	})

	o.wg.Add(1)
	go o.process(runCtx, j)
	return run.ID, nil
}

// Cancel requests cancellation of an active run. The current stage finishes
// first; the run then fails with a cancelled error. Returns false when the
// run has already reached a terminal state.
func (o *Orchestrator) Cancel(ctx context.Context, runID string) (bool, error) {
	o.mu.Lock()
	j, ok := o.active[runID]
	var abort func()
	terminal := false
	if ok {
		abort = j.abortWait
		terminal = j.run.Status.IsTerminal()
	}
	o.mu.Unlock()
	if terminal {
		return false, nil
	}

	if !ok {
		run, err := o.store.GetRun(ctx, runID)
		if err != nil {
			return false, err
		}
		if run == nil {
			return false, notFound(runID)
		}
		return false, nil
	}
	if !j.cancelRequested.CompareAndSwap(false, true) {
		return true, nil
	}
	j.record("warn", "cancel requested; run stops after the current stage")
	j.logger.Info("cancel requested", logging.String(logging.FieldEventType, "run_cancel_requested"))
	if abort != nil {
		abort()
	}
	return true, nil
}

// Recover fails runs left non-terminal by a previous daemon process. Call it
// once before accepting submissions.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	runs, err := o.store.MarkInterrupted(ctx)
	if err != nil {
		return 0, err
	}
	for _, run := range runs {
		logging.WarnWithContext(o.logger, "run interrupted by restart", "run_interrupted",
			logging.String(logging.FieldRunID, run.ID),
			logging.String(logging.FieldRecording, run.Recording),
			logging.String("previous_status", string(run.Status)),
			logging.String(logging.FieldErrorHint, "resubmit the recording to start a new run"),
			logging.String(logging.FieldImpact, "run marked failed"),
		)
		o.publish(run, events.TypeError, map[string]any{
			"status": string(queue.StatusFailed),
			"kind":   services.KindCancelled,
			"error":  queue.InterruptedReason,
		})
	}
	return len(runs), nil
}

// Shutdown stops accepting submissions and waits for in-flight runs. When ctx
// ends first, remaining runs are cancelled and fail as interrupted.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.submitMu.Lock()
	o.closed = true
	o.submitMu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}

func notFound(runID string) error {
	return services.Wrap(services.ErrNotFound, "", "lookup", fmt.Sprintf("run %s not found", runID), nil)
}
