package retrieval

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"ai-analyst-be/pkg/agent/prompts"
	"ai-analyst-be/pkg/llm"
	"ai-analyst-be/pkg/store"
)

// scriptedLLM serves judgment replies through Chat and summary replies
// through Generate, each consumed in call order.
type scriptedLLM struct {
	chatReplies     []string
	chatErr         error
	chatCalls       int
	generateReplies []string
	generateCalls   int
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	idx := s.chatCalls
	s.chatCalls++
	if s.chatErr != nil {
		return "", s.chatErr
	}
	if idx >= len(s.chatReplies) {
		return "", fmt.Errorf("unexpected judgment call %d", idx+1)
	}
	return s.chatReplies[idx], nil
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	idx := s.generateCalls
	s.generateCalls++
	if idx >= len(s.generateReplies) {
		return "", fmt.Errorf("unexpected generation call %d", idx+1)
	}
	return s.generateReplies[idx], nil
}

// fakeIndex replays scripted search batches and records the queries it saw.
type fakeIndex struct {
	batches   [][]store.RetrievedDoc
	searchErr error
	queries   []string
}

func (f *fakeIndex) Search(ctx context.Context, query string, k int) ([]store.RetrievedDoc, error) {
	idx := len(f.queries)
	f.queries = append(f.queries, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if idx >= len(f.batches) {
		return nil, nil
	}
	return f.batches[idx], nil
}

func docs(ids ...string) []store.RetrievedDoc {
	out := make([]store.RetrievedDoc, len(ids))
	for i, id := range ids {
		out[i] = store.RetrievedDoc{ChunkID: id, Content: "content of " + id, Score: 0.9}
	}
	return out
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestParseJudgment(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     store.Judgment
	}{
		{
			name:     "solved with content",
			response: "STATUS: SOLVED\nCONTENT: The refund window is 30 days.",
			want: store.Judgment{
				Status: store.JudgmentSolved,
				Answer: "The refund window is 30 days.",
			},
		},
		{
			name:     "solved without content downgrades to continue",
			response: "STATUS: SOLVED",
			want:     store.Judgment{Status: store.JudgmentContinue},
		},
		{
			name:     "search more with clues and next query",
			response: "STATUS: SEARCH_MORE\nCLUES: mentions a policy revision in 2022\nNEXT_QUERY: 2022 refund policy revision",
			want: store.Judgment{
				Status:    store.JudgmentContinue,
				Clues:     "mentions a policy revision in 2022",
				NextQuery: "2022 refund policy revision",
			},
		},
		{
			name:     "give up clears the next query",
			response: "STATUS: GIVE_UP\nNEXT_QUERY: should be ignored",
			want:     store.Judgment{Status: store.JudgmentContinue},
		},
		{
			name:     "garbage normalizes to continue",
			response: "I think the documents are interesting.",
			want:     store.Judgment{Status: store.JudgmentContinue},
		},
		{
			name:     "indented lines are trimmed",
			response: "  STATUS: SOLVED\n  CONTENT: Yes.",
			want:     store.Judgment{Status: store.JudgmentSolved, Answer: "Yes."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseJudgment(tt.response)
			if got != tt.want {
				t.Errorf("ParseJudgment() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSolveSolvedInFirstRound(t *testing.T) {
	model := &scriptedLLM{chatReplies: []string{"STATUS: SOLVED\nCONTENT: Shipping takes 3 days."}}
	index := &fakeIndex{batches: [][]store.RetrievedDoc{docs("c1", "c2")}}
	engine := NewEngine(model, index, 3, 5, discardLogger())

	result, err := engine.Solve(context.Background(), "How long does shipping take?", "none")
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	if !result.Solved {
		t.Fatal("expected a solved result")
	}
	if result.Answer != "Shipping takes 3 days." {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(result.Rounds) != 1 {
		t.Fatalf("rounds = %d, want 1", len(result.Rounds))
	}
	if len(result.Evidence) != 2 {
		t.Errorf("evidence = %d docs, want 2", len(result.Evidence))
	}
}

func TestSolveDeduplicatesAcrossRounds(t *testing.T) {
	// Every round returns the same chunks; after round one nothing is fresh,
	// so two empty rounds end the loop early and the summary concedes.
	index := &fakeIndex{batches: [][]store.RetrievedDoc{
		docs("c1", "c2"),
		docs("c1", "c2"),
		docs("c2", "c1"),
	}}
	model := &scriptedLLM{
		chatReplies:     []string{"STATUS: SEARCH_MORE\nCLUES: none\nNEXT_QUERY: warranty duration details"},
		generateReplies: []string{prompts.NoAnswerSentinel},
	}
	engine := NewEngine(model, index, 5, 5, discardLogger())

	result, err := engine.Solve(context.Background(), "What is the warranty?", "none")
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	if result.Solved {
		t.Fatal("expected an unsolved result")
	}
	if len(result.Evidence) != 2 {
		t.Errorf("evidence = %d docs, duplicates must not accumulate", len(result.Evidence))
	}
	if len(result.Rounds) != 3 {
		t.Errorf("rounds = %d, want 3 before the empty-round short circuit", len(result.Rounds))
	}
	if model.chatCalls != 1 {
		t.Errorf("judgment calls = %d, rounds with no fresh documents must skip judging", model.chatCalls)
	}
}

func TestSolveFollowsRefinedQueries(t *testing.T) {
	index := &fakeIndex{batches: [][]store.RetrievedDoc{
		docs("c1"),
		docs("c2"),
		docs("c3"),
	}}
	model := &scriptedLLM{
		chatReplies: []string{
			"STATUS: SEARCH_MORE\nCLUES: policy changed in 2022\nNEXT_QUERY: policy change 2022",
			"STATUS: SEARCH_MORE\nCLUES: change applied to EU customers\nNEXT_QUERY: EU customer policy",
			"STATUS: SEARCH_MORE\nCLUES: none",
		},
		generateReplies: []string{"The policy changed in 2022 for EU customers."},
	}
	engine := NewEngine(model, index, 3, 5, discardLogger())

	result, err := engine.Solve(context.Background(), "What changed in the policy?", "none")
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}

	wantQueries := []string{"What changed in the policy?", "policy change 2022", "EU customer policy"}
	if len(index.queries) != len(wantQueries) {
		t.Fatalf("queries = %v, want %v", index.queries, wantQueries)
	}
	for i := range wantQueries {
		if index.queries[i] != wantQueries[i] {
			t.Errorf("round %d query = %q, want %q", i+1, index.queries[i], wantQueries[i])
		}
	}

	// Budget exhausted with evidence in hand: the summary becomes the answer.
	if !result.Solved {
		t.Fatal("expected the summary fallback to solve")
	}
	if !strings.Contains(result.Answer, "2022") {
		t.Errorf("answer = %q, want the synthesized summary", result.Answer)
	}
}

func TestSolveMissingNextQueryFallsBackToQuestion(t *testing.T) {
	index := &fakeIndex{batches: [][]store.RetrievedDoc{
		docs("c1"),
		docs("c2"),
	}}
	model := &scriptedLLM{
		chatReplies: []string{
			"STATUS: SEARCH_MORE\nCLUES: none",
			"STATUS: SOLVED\nCONTENT: Done.",
		},
	}
	engine := NewEngine(model, index, 3, 5, discardLogger())

	_, err := engine.Solve(context.Background(), "original question", "none")
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	if index.queries[1] != "original question" {
		t.Errorf("round 2 query = %q, want the original question", index.queries[1])
	}
}

func TestSolveRecordsRoundOnJudgmentFailure(t *testing.T) {
	index := &fakeIndex{batches: [][]store.RetrievedDoc{docs("c1", "c2")}}
	model := &scriptedLLM{chatErr: llm.ErrUnavailable}
	engine := NewEngine(model, index, 3, 5, discardLogger())

	result, err := engine.Solve(context.Background(), "What is the policy?", "none")
	if err == nil {
		t.Fatal("expected the judgment failure to surface")
	}
	if len(result.Evidence) != 2 {
		t.Fatalf("evidence = %d docs, want 2", len(result.Evidence))
	}
	// Every retrieved document must be accounted for by a round record.
	if len(result.Rounds) != 1 {
		t.Fatalf("rounds = %d, the failed round must still be recorded", len(result.Rounds))
	}
	round := result.Rounds[0]
	if len(round.Docs) != 2 {
		t.Errorf("round docs = %d, want the retrieved batch", len(round.Docs))
	}
	if round.Error == "" {
		t.Error("the failed round must carry the failure")
	}
}

func TestSolveRecordsRoundOnSearchFailure(t *testing.T) {
	index := &fakeIndex{searchErr: fmt.Errorf("index offline")}
	engine := NewEngine(&scriptedLLM{}, index, 3, 5, discardLogger())

	result, err := engine.Solve(context.Background(), "Anything?", "none")
	if err == nil {
		t.Fatal("expected the search failure to surface")
	}
	if len(result.Rounds) != 1 {
		t.Fatalf("rounds = %d, the failed round must still be recorded", len(result.Rounds))
	}
	if result.Rounds[0].Error == "" {
		t.Error("the failed round must carry the failure")
	}
	if result.Rounds[0].Query != "Anything?" {
		t.Errorf("round query = %q", result.Rounds[0].Query)
	}
}

func TestSolveNoEvidenceNoSummary(t *testing.T) {
	index := &fakeIndex{}
	model := &scriptedLLM{}
	engine := NewEngine(model, index, 3, 5, discardLogger())

	result, err := engine.Solve(context.Background(), "Anything at all?", "none")
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	if result.Solved {
		t.Fatal("expected an unsolved result")
	}
	if model.generateCalls != 0 {
		t.Errorf("summary calls = %d, nothing retrieved means nothing to summarize", model.generateCalls)
	}
	if len(result.Rounds) != 2 {
		t.Errorf("rounds = %d, two empty rounds should end the loop", len(result.Rounds))
	}
}
