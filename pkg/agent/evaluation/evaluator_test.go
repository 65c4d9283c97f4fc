package evaluation

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"ai-analyst-be/pkg/llm"
	"ai-analyst-be/pkg/store"
)

type stubLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *stubLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return s.response, s.err
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "", 0)
}

func TestParseScores(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     map[string]float64
		wantErr  bool
	}{
		{
			name:     "clean json",
			response: `{"faithfulness": 0.9, "answer_relevancy": 0.8}`,
			want:     map[string]float64{"faithfulness": 0.9, "answer_relevancy": 0.8},
		},
		{
			name:     "json wrapped in prose",
			response: "Here are the scores:\n{\"faithfulness\": 1.0, \"answer_relevancy\": 0.75}\nDone.",
			want:     map[string]float64{"faithfulness": 1.0, "answer_relevancy": 0.75},
		},
		{
			name:     "out of range values clamped",
			response: `{"faithfulness": 1.4, "answer_relevancy": -0.2}`,
			want:     map[string]float64{"faithfulness": 1.0, "answer_relevancy": 0.0},
		},
		{
			name:     "one known dimension kept",
			response: `{"faithfulness": 0.5, "confidence": 0.9}`,
			want:     map[string]float64{"faithfulness": 0.5},
		},
		{
			name:     "no json object",
			response: "the answer looks fine to me",
			wantErr:  true,
		},
		{
			name:     "no known dimensions",
			response: `{"confidence": 0.9}`,
			wantErr:  true,
		},
		{
			name:     "malformed json",
			response: `{"faithfulness": oops}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScores(tt.response)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseScores(%q) expected error, got %v", tt.response, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScores(%q) unexpected error: %v", tt.response, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for dim, want := range tt.want {
				if got[dim] != want {
					t.Errorf("score[%s] = %v, want %v", dim, got[dim], want)
				}
			}
		})
	}
}

func TestEvaluateSkipsWhenNothingGradable(t *testing.T) {
	model := &stubLLM{response: `{"faithfulness": 1.0}`}
	e := NewEvaluator(model, testLogger())

	scores, err := e.Evaluate(context.Background(), "q", "", []store.RetrievedDoc{{Content: "c"}})
	if err != nil || scores != nil {
		t.Fatalf("empty answer: got scores=%v err=%v, want nil, nil", scores, err)
	}

	scores, err = e.Evaluate(context.Background(), "q", "an answer", nil)
	if err != nil || scores != nil {
		t.Fatalf("no sources: got scores=%v err=%v, want nil, nil", scores, err)
	}
	if len(model.prompts) != 0 {
		t.Fatalf("model was called %d times, want 0", len(model.prompts))
	}
}

func TestEvaluateGradesAgainstSources(t *testing.T) {
	model := &stubLLM{response: `{"faithfulness": 0.9, "answer_relevancy": 0.7}`}
	e := NewEvaluator(model, testLogger())

	sources := []store.RetrievedDoc{
		{ChunkID: "c1", Content: "revenue grew 12% in Q3"},
		{ChunkID: "c2", Content: "the west region led growth"},
	}
	scores, err := e.Evaluate(context.Background(), "how did revenue do?", "Revenue grew 12%.", sources)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if scores["faithfulness"] != 0.9 || scores["answer_relevancy"] != 0.7 {
		t.Fatalf("unexpected scores: %v", scores)
	}

	if len(model.prompts) != 1 {
		t.Fatalf("model was called %d times, want 1", len(model.prompts))
	}
	for _, fragment := range []string{"how did revenue do?", "Revenue grew 12%.", "revenue grew 12% in Q3", "the west region led growth"} {
		if !strings.Contains(model.prompts[0], fragment) {
			t.Errorf("evaluation prompt missing %q", fragment)
		}
	}
}

func TestEvaluateSurfacesModelFailure(t *testing.T) {
	model := &stubLLM{err: llm.ErrUnavailable}
	e := NewEvaluator(model, testLogger())

	_, err := e.Evaluate(context.Background(), "q", "answer", []store.RetrievedDoc{{Content: "c"}})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
