// Package progress provides the in-memory per-job progress event log.
package progress

import (
	"slices"
	"sync"
	"time"
)

// Event is one timestamped progress record for a job.
type Event struct {
	Step         string    `json:"step"`
	Percent      float64   `json:"progress_percent"`
	Message      string    `json:"message"`
	CurrentChunk int       `json:"current_chunk"`
	TotalChunks  int       `json:"total_chunks"`
	Timestamp    time.Time `json:"timestamp"`
}

// maxEventsPerJob bounds the retained history per job. Older events are
// evicted; full history is not durable across process restarts.
const maxEventsPerJob = 50

// subscriberBuffer sizes each subscriber channel. A slow consumer drops
// events rather than blocking the analysis loop.
const subscriberBuffer = 16

type subscriber struct {
	jobID string
	ch    chan Event
}

// Tracker is the process-wide progress log, keyed by job ID. Constructed
// once at startup and injected into everything that reports or reads
// progress. All methods are safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	events map[string][]Event
	subs   map[*subscriber]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		events: make(map[string][]Event),
		subs:   make(map[*subscriber]struct{}),
	}
}

// Publish appends an event to the job's history, evicting beyond the
// bounded window, and fans it out to live subscribers in append order.
func (t *Tracker) Publish(jobID string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	t.mu.Lock()
	history := append(t.events[jobID], ev)
	if len(history) > maxEventsPerJob {
		history = history[len(history)-maxEventsPerJob:]
	}
	t.events[jobID] = history

	for sub := range t.subs {
		if sub.jobID != jobID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Slow consumer: drop rather than stall the publisher.
		}
	}
	t.mu.Unlock()
}

// Latest returns the most recent event for a job.
func (t *Tracker) Latest(jobID string) (Event, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	history := t.events[jobID]
	if len(history) == 0 {
		return Event{}, false
	}
	return history[len(history)-1], true
}

// History returns the retained events for a job strictly after since, in
// append order. A zero since returns the full retained window.
func (t *Tracker) History(jobID string, since time.Time) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	history := t.events[jobID]
	out := make([]Event, 0, len(history))
	for _, ev := range history {
		if ev.Timestamp.After(since) {
			out = append(out, ev)
		}
	}
	return out
}

// Jobs returns the IDs of all jobs with retained history.
func (t *Tracker) Jobs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.events))
	for id := range t.events {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Subscribe returns a channel receiving the job's future events and a
// cancel function that must be called when done.
func (t *Tracker) Subscribe(jobID string) (<-chan Event, func()) {
	sub := &subscriber{jobID: jobID, ch: make(chan Event, subscriberBuffer)}

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		if _, ok := t.subs[sub]; ok {
			delete(t.subs, sub)
			close(sub.ch)
		}
		t.mu.Unlock()
	}
	return sub.ch, cancel
}

// Forget drops a job's retained history.
func (t *Tracker) Forget(jobID string) {
	t.mu.Lock()
	delete(t.events, jobID)
	t.mu.Unlock()
}
