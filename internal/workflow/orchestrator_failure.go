package workflow

import (
	"context"
	"errors"
	"os"
	"strings"

	"echopress/internal/draft"
	"echopress/internal/events"
	"echopress/internal/logging"
	"echopress/internal/queue"
	"echopress/internal/services"
)

// fail moves the run into the failure sink. The stage it failed in stays on
// the snapshot.
func (o *Orchestrator) fail(ctx context.Context, j *job, stageName string, stageErr error) {
	details := services.Details(stageErr)
	message := o.classifyStageFailure(stageName, stageErr)
	now := o.now()
	entry := queue.LogEntry{Timestamp: now, Level: "error", Message: stageName + " failed: " + message}

	o.mu.Lock()
	run := j.run
	if run.Stage == "" {
		run.Stage = stageName
	}
	run.SetFailed(details.Kind, message, now)
	run.Log = append(run.Log, entry)
	snapshot := run.Clone()
	o.lastRun = snapshot
	if details.Kind != services.KindCancelled {
		o.lastErr = stageErr
	}
	o.mu.Unlock()

	attrs := []logging.Attr{
		logging.String(logging.FieldStage, stageName),
		logging.String("resolved_status", string(queue.StatusFailed)),
		logging.String("error_message", message),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.String(logging.FieldErrorOperation, details.Operation),
		logging.String(logging.FieldErrorHint, details.Hint),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(stageErr))
	}
	logging.ErrorWithContext(logging.WithContext(ctx, j.logger), "stage failed", "stage_failure", attrs...)

	o.discardDraft(ctx, j)
	o.persist(ctx, snapshot, &entry)
	o.publish(snapshot, events.TypeError, map[string]any{
		"status": string(queue.StatusFailed),
		"stage":  stageName,
		"kind":   details.Kind,
		"error":  message,
		"hint":   details.Hint,
	})
	o.notifyFailed(ctx, snapshot)
}

// discardDraft removes a draft stored by a run that did not complete, so a
// failed or cancelled run leaves neither a draft row nor a markdown file.
func (o *Orchestrator) discardDraft(ctx context.Context, j *job) {
	if j.draft.ID == "" {
		return
	}
	logger := logging.WithContext(ctx, j.logger)
	if err := o.store.DeleteDraft(context.WithoutCancel(ctx), j.run.ID); err != nil {
		logging.WarnWithContext(logger, "draft of failed run not removed", "draft_discard_failed",
			logging.Error(err),
			logging.String("draft_id", j.draft.ID),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "a draft remains stored for a failed run"),
		)
	}
	if j.draftPath != "" {
		if err := os.Remove(j.draftPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "draft markdown of failed run not removed", "draft_discard_failed",
				logging.Error(err),
				logging.String("path", j.draftPath),
				logging.String(logging.FieldErrorHint, "remove the file from draft_dir by hand"),
				logging.String(logging.FieldImpact, "a markdown draft remains for a failed run"),
			)
		}
	}
	logger.Info("draft discarded", logging.String(logging.FieldEventType, "draft_discarded"), logging.String("draft_id", j.draft.ID))
	j.draft = draft.Draft{}
	j.draftPath = ""
}

// finish publishes the completion event for a run whose last stage succeeded.
func (o *Orchestrator) finish(ctx context.Context, j *job) {
	o.mu.RLock()
	snapshot := j.run.Clone()
	o.mu.RUnlock()

	o.publish(snapshot, events.TypeCompleted, map[string]any{
		"status":    string(snapshot.Status),
		"progress":  snapshot.Progress,
		"draft_id":  j.draft.ID,
		"citations": len(j.draft.Ledger),
		"sections":  len(j.draft.Sections),
	})
	logging.WithContext(ctx, j.logger).Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("draft_id", j.draft.ID),
		logging.Int("citations", len(j.draft.Ledger)),
		logging.Int("words", j.draft.Metadata.WordCount),
	)
	o.notifyCompleted(ctx, snapshot, j)
}

// release drops the run from the active set once it is terminal.
func (o *Orchestrator) release(j *job) {
	o.mu.Lock()
	delete(o.active, j.run.ID)
	if current, ok := o.byRecording[j.run.Recording]; ok && current == j {
		delete(o.byRecording, j.run.Recording)
	}
	o.mu.Unlock()
	if j.closeLog != nil {
		j.closeLog()
	}
	o.pruneHistory()
}

func (o *Orchestrator) pruneHistory() {
	keep := o.cfg.Pipeline.RunRetention
	if keep <= 0 {
		return
	}
	removed, err := o.store.PruneRuns(context.Background(), keep)
	if err != nil {
		logging.WarnWithContext(o.logger, "run history prune failed", "run_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "old runs stay in the database"),
		)
		return
	}
	if removed > 0 {
		o.logger.Debug("pruned run history", logging.Int64("removed", removed), logging.Int("keep", keep))
	}
}

func (o *Orchestrator) classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return stageName + " failed without error detail"
	}
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	}
	if message == "" {
		message = stageName + " failed"
	}
	return message
}
