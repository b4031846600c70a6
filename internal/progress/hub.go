// Package progress fans pipeline progress events out to watching clients.
// Delivery is best-effort: publishing never blocks the pipeline, and events
// with no subscriber are dropped rather than queued.
package progress

import (
	"sync"
	"time"
)

// Terminal step names emitted by the pipeline.
const (
	StepComplete = "complete"
	StepError    = "error"
)

// Event is one progress update for a job.
type Event struct {
	// Step names the pipeline checkpoint ("downscale", "animals", ...).
	Step string `json:"step"`
	// Percentage is 0-100, increasing across a job's events except for the
	// terminal error event, which carries 0.
	Percentage int `json:"percentage"`
	// Message is a human-readable description.
	Message string `json:"message"`
	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}

// IsTerminal returns true if no further events follow this one.
func (e Event) IsTerminal() bool {
	return e.Step == StepComplete || e.Step == StepError
}

// subscriberBuffer bounds how many undelivered events a slow subscriber may
// hold before newer events are dropped.
const subscriberBuffer = 16

// Hub holds at most one subscriber per job. Subscribing again for the same
// job replaces (and closes) the previous subscription.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan Event)}
}

// Subscribe attaches the single subscriber slot for jobID and returns the
// event channel plus a cancel function. Cancel is idempotent and closes the
// channel.
func (h *Hub) Subscribe(jobID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.subs[jobID]; ok {
		close(prev)
	}
	ch := make(chan Event, subscriberBuffer)
	h.subs[jobID] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if cur, ok := h.subs[jobID]; ok && cur == ch {
			delete(h.subs, jobID)
			close(cur)
		}
	}
	return ch, cancel
}

// Publish delivers an event to the job's subscriber if one is attached and
// has buffer space. It never blocks; undeliverable events are dropped.
func (h *Hub) Publish(jobID string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	// The send must stay under the lock: Subscribe and cancel close the
	// channel under the same lock, and sending on a closed channel panics.
	// The select never blocks, so holding the lock here is cheap.
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[jobID]
	if !ok {
		return
	}

	select {
	case ch <- ev:
	default:
		// Subscriber is too slow; drop rather than stall the pipeline.
	}
}
