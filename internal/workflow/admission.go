package workflow

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// admissionGate caps concurrent transcription stages across runs. Waiters are
// admitted strictly in arrival order.
type admissionGate struct {
	limit  int
	sem    *semaphore.Weighted
	active atomic.Int64
	queued atomic.Int64
}

func newAdmissionGate(limit int) *admissionGate {
	if limit <= 0 {
		limit = 1
	}
	return &admissionGate{limit: limit, sem: semaphore.NewWeighted(int64(limit))}
}

// tryAcquire takes a slot only when one is free and nobody is queued ahead.
func (g *admissionGate) tryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.active.Add(1)
	return true
}

// acquire blocks in FIFO order until a slot frees or ctx ends.
func (g *admissionGate) acquire(ctx context.Context) error {
	g.queued.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.queued.Add(-1)
	if err != nil {
		return err
	}
	g.active.Add(1)
	return nil
}

func (g *admissionGate) release() {
	g.active.Add(-1)
	g.sem.Release(1)
}

// AdmissionStats reports transcription gate occupancy.
type AdmissionStats struct {
	Limit  int `json:"limit"`
	Active int `json:"active"`
	Queued int `json:"queued"`
}

func (g *admissionGate) stats() AdmissionStats {
	return AdmissionStats{
		Limit:  g.limit,
		Active: int(g.active.Load()),
		Queued: int(g.queued.Load()),
	}
}
