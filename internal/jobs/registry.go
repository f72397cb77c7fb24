// Package jobs provides the process-wide job registry: cancellation flags
// keyed by job ID, handed to the analysis loop as explicit tokens.
package jobs

import "sync"

// Registry tracks cancellation requests for in-flight jobs. Constructed
// once at process start and injected wherever cancellation is requested or
// observed. Concurrent jobs never share an entry, so a single mutex over
// the set is sufficient.
type Registry struct {
	mu        sync.Mutex
	cancelled map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{cancelled: make(map[string]struct{})}
}

// RequestCancel flags a job for cancellation. The flag is observed at the
// next checkpoint in the analysis loop; there is no pre-emptive interrupt
// of an in-flight model call.
func (r *Registry) RequestCancel(jobID string) {
	r.mu.Lock()
	r.cancelled[jobID] = struct{}{}
	r.mu.Unlock()
}

// Requested reports whether cancellation has been requested for a job
// without consuming the flag.
func (r *Registry) Requested(jobID string) bool {
	r.mu.Lock()
	_, ok := r.cancelled[jobID]
	r.mu.Unlock()
	return ok
}

// Clear removes a job's cancellation flag after it has been handled. The
// flag is one-shot: a later cancel requires a new RequestCancel.
func (r *Registry) Clear(jobID string) {
	r.mu.Lock()
	delete(r.cancelled, jobID)
	r.mu.Unlock()
}

// Token returns the cancellation token for one job. The token is the
// single cancellation-check handle threaded through the analysis loop and
// retry waits.
func (r *Registry) Token(jobID string) Token {
	return Token{registry: r, jobID: jobID}
}

// Token is a job-scoped view of the registry.
type Token struct {
	registry *Registry
	jobID    string
}

// Requested reports whether cancellation has been requested.
func (t Token) Requested() bool {
	return t.registry != nil && t.registry.Requested(t.jobID)
}

// Clear consumes the cancellation flag.
func (t Token) Clear() {
	if t.registry != nil {
		t.registry.Clear(t.jobID)
	}
}
