// Package trace accumulates the ordered decision record for one answer.
package trace

import (
	"ai-analyst-be/pkg/store"
)

// Recorder is an append-only step accumulator scoped to a single answer
// invocation. It is not safe for concurrent use and is never shared across
// invocations.
type Recorder struct {
	steps store.TraceLog
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Add appends a step. Steps are recorded in real execution order.
func (r *Recorder) Add(step store.TraceStep) {
	r.steps = append(r.steps, step)
}

// AddDetails appends a plain key/value step.
func (r *Recorder) AddDetails(name, strategy string, details map[string]any) {
	r.Add(store.TraceStep{
		Step:     name,
		Strategy: strategy,
		Details:  details,
	})
}

// Len returns the number of steps recorded so far.
func (r *Recorder) Len() int {
	return len(r.steps)
}

// Snapshot returns a copy of the accumulated log. The copy is safe to hand
// to callers; later appends do not leak into it.
func (r *Recorder) Snapshot() store.TraceLog {
	out := make(store.TraceLog, len(r.steps))
	copy(out, r.steps)
	return out
}
