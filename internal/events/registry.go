// Package events fans pipeline lifecycle events out to observers subscribed by
// recording identity.
//
// Delivery is at-most-once and never blocks the publisher: an observer whose
// buffer is full, or that has been closed, is pruned on the next publish to
// its recording and its channel is closed.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Type classifies an event.
type Type string

const (
	TypeProgress  Type = "progress"
	TypeLog       Type = "log"
	TypeError     Type = "error"
	TypeCompleted Type = "completed"
)

// Event is one lifecycle message for a run.
type Event struct {
	Type      Type           `json:"type"`
	RunID     string         `json:"run_id"`
	Recording string         `json:"recording"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	// Sequence increases across the whole registry.
	Sequence uint64 `json:"sequence"`
}

// DefaultBuffer is used when Subscribe is called with a non-positive buffer.
const DefaultBuffer = 64

// Observer receives events for a single recording.
type Observer struct {
	id        uint64
	recording string
	ch        chan Event
	closed    atomic.Bool
	once      sync.Once
}

// Events returns the receive channel. It is closed once the observer is pruned
// or unsubscribed.
func (o *Observer) Events() <-chan Event { return o.ch }

// Recording returns the recording identity the observer follows.
func (o *Observer) Recording() string { return o.recording }

// Close marks the observer as gone. The registry releases it lazily.
func (o *Observer) Close() { o.closed.Store(true) }

func (o *Observer) shutdown() {
	o.once.Do(func() { close(o.ch) })
}

// Registry is the process-wide observer table.
type Registry struct {
	mu        sync.Mutex
	observers map[string][]*Observer
	buffer    int
	nextID    uint64
	sequence  uint64
	now       func() time.Time
}

// NewRegistry creates a registry whose observers default to buffer slots.
func NewRegistry(buffer int) *Registry {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Registry{
		observers: make(map[string][]*Observer),
		buffer:    buffer,
		now:       time.Now,
	}
}

// Subscribe registers an observer for recording.
func (r *Registry) Subscribe(recording string, buffer int) *Observer {
	if buffer <= 0 {
		buffer = r.buffer
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	obs := &Observer{id: r.nextID, recording: recording, ch: make(chan Event, buffer)}
	r.observers[recording] = append(r.observers[recording], obs)
	return obs
}

// Unsubscribe removes obs immediately and closes its channel.
func (r *Registry) Unsubscribe(obs *Observer) {
	if obs == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.observers[obs.recording]
	for i, candidate := range list {
		if candidate.id == obs.id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	r.store(obs.recording, list)
	obs.closed.Store(true)
	obs.shutdown()
}

// Publish delivers evt to every live observer of recording and returns how
// many received it. Timestamp and Sequence are filled in when unset.
func (r *Registry) Publish(recording string, evt Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequence++
	evt.Sequence = r.sequence
	evt.Recording = recording
	if evt.Timestamp.IsZero() {
		evt.Timestamp = r.now().UTC()
	}
	list := r.observers[recording]
	if len(list) == 0 {
		return 0
	}
	delivered := 0
	live := list[:0]
	for _, obs := range list {
		if obs.closed.Load() {
			obs.shutdown()
			continue
		}
		select {
		case obs.ch <- evt:
			delivered++
			live = append(live, obs)
		default:
			// Buffer full: the observer stopped draining.
			obs.closed.Store(true)
			obs.shutdown()
		}
	}
	for i := len(live); i < len(list); i++ {
		list[i] = nil
	}
	r.store(recording, live)
	return delivered
}

// Count returns the number of registered observers for recording, including
// ones awaiting pruning.
func (r *Registry) Count(recording string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers[recording])
}

func (r *Registry) store(recording string, list []*Observer) {
	if len(list) == 0 {
		delete(r.observers, recording)
		return
	}
	r.observers[recording] = list
}
