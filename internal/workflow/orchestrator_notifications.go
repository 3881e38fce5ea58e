package workflow

import (
	"context"
	"errors"
	"time"

	"echopress/internal/logging"
	"echopress/internal/notifications"
	"echopress/internal/queue"
)

func (o *Orchestrator) notifyCompleted(ctx context.Context, run *queue.Run, j *job) {
	duration := time.Duration(0)
	if run.CompletedAt != nil {
		duration = run.CompletedAt.Sub(run.CreatedAt)
	}
	o.publishNotification(ctx, notifications.EventRunCompleted, notifications.Payload{
		"title":     run.Title,
		"draft_id":  j.draft.ID,
		"citations": len(j.draft.Ledger),
		"duration":  duration,
	})
}

func (o *Orchestrator) notifyFailed(ctx context.Context, run *queue.Run) {
	o.publishNotification(ctx, notifications.EventRunFailed, notifications.Payload{
		"title": run.Title,
		"kind":  run.ErrorKind,
		"error": run.ErrorMessage,
	})
}

func (o *Orchestrator) publishNotification(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			o.logger.Debug("daemon shutting down, could not send notification")
			return
		}
		o.logger.Debug("run notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
