// File: internal/server/runs.go
package server

import (
	"sync"

	"github.com/xkilldash9x/agentforge/internal/orchestrator"
)

// runState buffers the progress stream of one run so late subscribers can
// replay it.
type runState struct {
	id string

	mu      sync.Mutex
	history []orchestrator.Update
	changed chan struct{}
	done    bool
}

func newRunState(id string) *runState {
	return &runState{id: id, changed: make(chan struct{})}
}

func (r *runState) append(u orchestrator.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, u)
	if u.Done {
		r.done = true
	}
	close(r.changed)
	r.changed = make(chan struct{})
}

// finish marks the run complete even if the stream closed without a final update.
func (r *runState) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	close(r.changed)
	r.changed = make(chan struct{})
}

// since returns the updates after index from, a channel closed on the next
// change, and whether the run has finished.
func (r *runState) since(from int) ([]orchestrator.Update, <-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []orchestrator.Update
	if from < len(r.history) {
		out = append(out, r.history[from:]...)
	}
	return out, r.changed, r.done
}

// latest returns the most recent update and whether any exists.
func (r *runState) latest() (orchestrator.Update, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return orchestrator.Update{RunID: r.id, Status: "Queued"}, false
	}
	return r.history[len(r.history)-1], true
}

// final returns the terminal update once the run has finished.
func (r *runState) final() (orchestrator.Update, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.done || len(r.history) == 0 {
		return orchestrator.Update{}, false
	}
	last := r.history[len(r.history)-1]
	return last, last.Done
}
