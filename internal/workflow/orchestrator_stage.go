package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"echopress/internal/events"
	"echopress/internal/logging"
	"echopress/internal/queue"
	"echopress/internal/services"
)

// process runs every stage in order on the run's own goroutine.
func (o *Orchestrator) process(ctx context.Context, j *job) {
	defer o.wg.Done()
	defer o.release(j)

	for _, st := range o.stages {
		if j.cancelRequested.Load() {
			o.fail(ctx, j, st.name, cancelledError(st.name))
			return
		}
		if err := o.executeStage(ctx, j, st); err != nil {
			o.fail(ctx, j, st.name, err)
			return
		}
	}
	o.finish(ctx, j)
}

// restorer is a gated stage that can satisfy a run from stored work.
type restorer interface {
	Restore(ctx context.Context, j *job) bool
}

func (o *Orchestrator) executeStage(ctx context.Context, j *job, st pipelineStage) error {
	stageCtx := services.WithStage(ctx, st.name)
	stageLogger := logging.WithContext(stageCtx, j.logger)

	if st.handler == nil {
		stageLogger.Warn("missing stage handler", logging.String(logging.FieldStage, st.name))
		return services.Wrap(services.ErrConfiguration, st.name, "execute", "stage handler unavailable", nil)
	}

	if st.gated {
		if r, ok := st.handler.(restorer); ok && r.Restore(stageCtx, j) {
			stageLogger.Info("checkpoint restored; transcription slot not needed",
				logging.String(logging.FieldEventType, "admission_skipped"))
		} else {
			if err := o.admit(stageCtx, j, stageLogger); err != nil {
				return err
			}
			defer o.gate.release()
		}
	}

	if st.processing != "" {
		o.transition(stageCtx, j, st.processing, st.startProgress, fmt.Sprintf("%s started", st.name))
	}
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(st.processing)),
		logging.String("recording_ref", j.run.RecordingRef),
		logging.Duration("timeout", st.timeout),
	)

	execCtx := stageCtx
	if st.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(stageCtx, st.timeout)
		defer cancel()
	}

	if err := st.handler.Execute(execCtx, j); err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) && stageCtx.Err() == nil {
			return services.Wrap(services.ErrProviderTimeout, st.name, "execute",
				fmt.Sprintf("stage exceeded its %s budget", st.timeout), err)
		}
		return services.Classify(st.name, "execute", err)
	}

	// A cancel that arrived mid-stage takes effect once the stage has finished.
	if j.cancelRequested.Load() {
		return cancelledError(st.name)
	}

	o.transition(stageCtx, j, st.done, st.doneProgress, fmt.Sprintf("%s completed", st.name))
	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(st.done)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

// admit waits for a transcription slot. The wait ends early on cancel or
// shutdown.
func (o *Orchestrator) admit(ctx context.Context, j *job, logger *slog.Logger) error {
	if o.gate.tryAcquire() {
		return nil
	}
	stats := o.gate.stats()
	j.record("info", fmt.Sprintf("waiting for transcription slot (%d active, %d queued)", stats.Active, stats.Queued+1))
	logger.Info("transcription slot busy; queued",
		logging.String(logging.FieldEventType, "admission_queued"),
		logging.Int("active", stats.Active),
		logging.Int("queued", stats.Queued+1),
	)

	waitCtx, abort := context.WithCancel(ctx)
	defer abort()
	o.mu.Lock()
	j.abortWait = abort
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		j.abortWait = nil
		o.mu.Unlock()
	}()
	// Cancel may have landed between the check in process and installing abortWait.
	if j.cancelRequested.Load() {
		return cancelledError("transcription")
	}

	if err := o.gate.acquire(waitCtx); err != nil {
		if j.cancelRequested.Load() {
			return cancelledError("transcription")
		}
		return services.Classify("transcription", "admission", err)
	}
	return nil
}

// transition moves the run to status, persists the snapshot and log entry, and
// publishes a progress event.
func (o *Orchestrator) transition(ctx context.Context, j *job, status queue.Status, progress float64, message string) {
	now := o.now()
	entry := queue.LogEntry{Timestamp: now, Level: "info", Message: message}

	o.mu.Lock()
	run := j.run
	run.Status = status
	run.Stage = status.Stage()
	if progress > run.Progress {
		run.Progress = progress
	}
	run.UpdatedAt = now
	if status == queue.StatusCompleted {
		run.DraftID = j.draft.ID
		completed := now
		run.CompletedAt = &completed
	}
	run.Log = append(run.Log, entry)
	snapshot := run.Clone()
	o.lastRun = snapshot
	o.mu.Unlock()

	o.persist(ctx, snapshot, &entry)
	o.publish(snapshot, events.TypeProgress, map[string]any{
		"status":   string(snapshot.Status),
		"stage":    snapshot.Stage,
		"progress": snapshot.Progress,
		"message":  message,
	})
}

// advance raises progress inside a stage without changing status.
func (o *Orchestrator) advance(ctx context.Context, j *job, progress float64, message string) {
	o.mu.Lock()
	run := j.run
	if progress <= run.Progress {
		o.mu.Unlock()
		return
	}
	run.Progress = progress
	run.UpdatedAt = o.now()
	snapshot := run.Clone()
	o.mu.Unlock()

	o.persist(ctx, snapshot, nil)
	o.publish(snapshot, events.TypeProgress, map[string]any{
		"status":   string(snapshot.Status),
		"stage":    snapshot.Stage,
		"progress": snapshot.Progress,
		"message":  message,
	})
}

// note appends a log entry that does not change run state.
func (o *Orchestrator) note(ctx context.Context, j *job, level, message string) {
	now := o.now()
	entry := queue.LogEntry{Timestamp: now, Level: level, Message: message}

	o.mu.Lock()
	run := j.run
	run.Log = append(run.Log, entry)
	run.UpdatedAt = now
	snapshot := run.Clone()
	o.mu.Unlock()

	o.persist(ctx, snapshot, &entry)
	o.publish(snapshot, events.TypeLog, map[string]any{
		"level":   level,
		"message": message,
	})
}

func (o *Orchestrator) persist(ctx context.Context, snapshot *queue.Run, entry *queue.LogEntry) {
	// Shutdown cancels run contexts; the final snapshot must still land.
	ctx = context.WithoutCancel(ctx)
	if err := o.store.SaveRun(ctx, snapshot); err != nil {
		o.persistFailed(err)
		return
	}
	if entry != nil {
		if err := o.store.AppendLog(ctx, snapshot.ID, *entry); err != nil {
			o.persistFailed(err)
		}
	}
}

func (o *Orchestrator) persistFailed(err error) {
	o.setLastError(err)
	logging.ErrorWithContext(o.logger, "failed to persist run snapshot", "run_persist_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
}

func (o *Orchestrator) publish(snapshot *queue.Run, typ events.Type, payload map[string]any) {
	o.events.Publish(snapshot.Recording, events.Event{
		Type:      typ,
		RunID:     snapshot.ID,
		Recording: snapshot.Recording,
		Payload:   payload,
	})
}

func cancelledError(stageName string) error {
	return services.Wrap(services.ErrCancelled, stageName, "cancel", "run cancelled by request", nil)
}
