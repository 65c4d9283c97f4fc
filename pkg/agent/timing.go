package agent

import "time"

// phaseTimer accumulates wall-clock durations per named phase, in
// milliseconds. Not safe for concurrent use; one timer per invocation.
type phaseTimer struct {
	started map[string]time.Time
	elapsed map[string]float64
}

func newPhaseTimer() *phaseTimer {
	return &phaseTimer{
		started: make(map[string]time.Time),
		elapsed: make(map[string]float64),
	}
}

func (t *phaseTimer) start(name string) {
	t.started[name] = time.Now()
}

func (t *phaseTimer) stop(name string) {
	startedAt, ok := t.started[name]
	if !ok {
		return
	}
	t.elapsed[name] += float64(time.Since(startedAt).Microseconds()) / 1000.0
	delete(t.started, name)
}

// snapshot closes any still-open phases and returns the accumulated map.
func (t *phaseTimer) snapshot() map[string]float64 {
	for name := range t.started {
		t.stop(name)
	}
	out := make(map[string]float64, len(t.elapsed))
	for k, v := range t.elapsed {
		out[k] = v
	}
	return out
}
