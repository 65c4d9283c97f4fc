package trace

import (
	"testing"

	"ai-analyst-be/pkg/store"
)

func TestRecorderPreservesOrder(t *testing.T) {
	r := NewRecorder()
	r.AddDetails(store.StepIntentRecognition, store.EngineStructured, map[string]any{"raw_signal": "STRUCTURED"})
	r.Add(store.TraceStep{Step: store.StepStructuredQuery, Strategy: "initial"})
	r.AddDetails(store.StepFinalAnswer, store.EngineStructured, nil)

	log := r.Snapshot()
	want := []string{store.StepIntentRecognition, store.StepStructuredQuery, store.StepFinalAnswer}
	if len(log) != len(want) {
		t.Fatalf("snapshot has %d steps, want %d", len(log), len(want))
	}
	for i, name := range want {
		if log[i].Step != name {
			t.Errorf("step %d = %q, want %q", i, log[i].Step, name)
		}
	}
	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
}

func TestSnapshotIsIsolatedFromLaterAppends(t *testing.T) {
	r := NewRecorder()
	r.AddDetails(store.StepIntentRecognition, "", nil)

	snap := r.Snapshot()
	r.AddDetails(store.StepFinalAnswer, "", nil)

	if len(snap) != 1 {
		t.Errorf("earlier snapshot grew to %d steps after a later append", len(snap))
	}
}
