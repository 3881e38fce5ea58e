package workflow

import (
	"context"
	"fmt"

	"echopress/internal/draft"
	"echopress/internal/events"
	"echopress/internal/logging"
	"echopress/internal/queue"
	"echopress/internal/recording"
	"echopress/internal/services"
	"echopress/internal/stage"
)

// Poll returns a snapshot of the run. Without an intervening state change,
// repeated polls return identical snapshots.
func (o *Orchestrator) Poll(ctx context.Context, runID string) (*queue.Run, error) {
	o.mu.RLock()
	j, ok := o.active[runID]
	var snapshot *queue.Run
	if ok {
		snapshot = j.run.Clone()
	}
	o.mu.RUnlock()
	if snapshot != nil {
		return snapshot, nil
	}

	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, notFound(runID)
	}
	return run, nil
}

// List returns recent runs newest first, optionally filtered by status.
func (o *Orchestrator) List(ctx context.Context, limit int, statuses ...queue.Status) ([]*queue.Run, error) {
	return o.store.ListRuns(ctx, limit, statuses...)
}

// Draft returns the finished draft of a completed run.
func (o *Orchestrator) Draft(ctx context.Context, runID string) (*draft.Draft, error) {
	run, err := o.Poll(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != queue.StatusCompleted {
		return nil, services.Wrap(services.ErrNotFound, "finalization", "draft",
			fmt.Sprintf("run %s has no draft (status %s)", runID, run.Status), nil)
	}
	d, err := o.store.GetDraft(ctx, runID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, services.Wrap(services.ErrNotFound, "finalization", "draft",
			fmt.Sprintf("draft for run %s missing", runID), nil)
	}
	return d, nil
}

// Subscribe registers an observer for every run of a recording reference.
func (o *Orchestrator) Subscribe(recordingRef string, buffer int) *events.Observer {
	return o.events.Subscribe(recording.Identity(recordingRef), buffer)
}

// SubscribeRun registers an observer for the recording behind runID and
// returns the run's snapshot alongside it. The snapshot is read after the
// observer is registered, so every event past the snapshot reaches the
// observer and a terminal run is always visible in one or the other.
func (o *Orchestrator) SubscribeRun(ctx context.Context, runID string, buffer int) (*events.Observer, *queue.Run, error) {
	run, err := o.Poll(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	obs := o.events.Subscribe(run.Recording, buffer)
	run, err = o.Poll(ctx, runID)
	if err != nil {
		o.events.Unsubscribe(obs)
		return nil, nil, err
	}
	return obs, run, nil
}

// Unsubscribe removes an observer and closes its channel.
func (o *Orchestrator) Unsubscribe(obs *events.Observer) {
	o.events.Unsubscribe(obs)
}

// StatusSummary represents lightweight orchestrator diagnostics.
type StatusSummary struct {
	Accepting      bool                    `json:"accepting"`
	ActiveRuns     int                     `json:"active_runs"`
	LastError      string                  `json:"last_error,omitempty"`
	LastRun        *queue.Run              `json:"last_run,omitempty"`
	RunStats       map[queue.Status]int    `json:"run_stats"`
	Transcriptions AdmissionStats          `json:"transcriptions"`
	StageHealth    map[string]stage.Health `json:"stage_health"`
}

// Status returns the latest orchestrator information.
func (o *Orchestrator) Status(ctx context.Context) StatusSummary {
	o.submitMu.Lock()
	accepting := !o.closed
	o.submitMu.Unlock()

	o.mu.RLock()
	activeRuns := len(o.active)
	lastErr := o.lastErr
	lastRun := o.lastRun.Clone()
	o.mu.RUnlock()

	stats, err := o.store.Stats(ctx)
	if err != nil {
		o.logger.Warn("failed to read run stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(o.stages))
	for _, st := range o.stages {
		if st.handler == nil {
			health[st.name] = stage.Unhealthy(st.name, "handler missing")
			continue
		}
		health[st.name] = st.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Accepting:      accepting,
		ActiveRuns:     activeRuns,
		LastRun:        lastRun,
		RunStats:       stats,
		Transcriptions: o.gate.stats(),
		StageHealth:    health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}

func (o *Orchestrator) setLastError(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
}
