package agent

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"ai-analyst-be/internal/repository/memory"
	"ai-analyst-be/pkg/agent/intent"
	"ai-analyst-be/pkg/agent/retrieval"
	"ai-analyst-be/pkg/agent/session"
	"ai-analyst-be/pkg/agent/structured"
	"ai-analyst-be/pkg/llm"
	"ai-analyst-be/pkg/store"
)

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.response, s.err
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.response, s.err
}

type stubStructured struct {
	result  *structured.Result
	err     error
	history string
	calls   int
}

func (s *stubStructured) Solve(ctx context.Context, question, history string) (*structured.Result, error) {
	s.calls++
	s.history = history
	return s.result, s.err
}

type stubRetrieval struct {
	result *retrieval.Result
	err    error
	calls  int
}

func (s *stubRetrieval) Solve(ctx context.Context, question, history string) (*retrieval.Result, error) {
	s.calls++
	return s.result, s.err
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestOrchestrator(
	routerReply string,
	synthesis llm.LLMProvider,
	structuredEng StructuredSolver,
	retrievalEng RetrievalSolver,
) (*Orchestrator, *session.Manager) {
	sessions := session.NewManager(memory.NewSessionRepository())
	router := intent.NewRouter(&stubLLM{response: routerReply}, 5, discardLogger())
	orch := NewOrchestrator(router, structuredEng, retrievalEng, sessions, synthesis, Config{}, discardLogger())
	return orch, sessions
}

func stepNames(trace store.TraceLog) []string {
	names := make([]string, len(trace))
	for i, s := range trace {
		names[i] = s.Step
	}
	return names
}

func TestAnswerStructuredWin(t *testing.T) {
	sqlEngine := &stubStructured{result: &structured.Result{
		Solved: true,
		Rows:   []map[string]any{{"total": 42}},
		Query:  "SELECT COUNT(*) AS total FROM sales",
		Attempts: []store.StructuredAttempt{
			{Index: 1, Query: "SELECT COUNT(*) AS total FROM sales", Outcome: store.OutcomeSuccess},
		},
	}}
	ragEngine := &stubRetrieval{result: &retrieval.Result{}}
	orch, sessions := newTestOrchestrator("STRUCTURED", &stubLLM{response: "There are 42 sales."}, sqlEngine, ragEngine)

	result, err := orch.Answer(context.Background(), "How many sales?", "s1")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if result.Status != store.StatusOK {
		t.Errorf("status = %q, want %q", result.Status, store.StatusOK)
	}
	if result.Answer != "There are 42 sales." {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.SQLQuery != "SELECT COUNT(*) AS total FROM sales" {
		t.Errorf("sql query = %q", result.SQLQuery)
	}
	if len(result.Sources) != 1 || result.Sources[0].ChunkID != "SQL" {
		t.Errorf("sources = %+v, want the executed query as the single source", result.Sources)
	}
	if ragEngine.calls != 0 {
		t.Errorf("retrieval engine was called %d times on a structured win", ragEngine.calls)
	}

	want := []string{store.StepIntentRecognition, store.StepStructuredQuery, store.StepFinalAnswer}
	got := stepNames(result.Trace)
	if len(got) != len(want) {
		t.Fatalf("trace steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace steps = %v, want %v", got, want)
		}
	}
	if result.Trace[1].Strategy != StrategyInitial {
		t.Errorf("structured step strategy = %q, want %q", result.Trace[1].Strategy, StrategyInitial)
	}

	turns := sessions.GetOrCreate("s1").Recent(10)
	if len(turns) != 2 {
		t.Fatalf("session turns = %d, want user and assistant", len(turns))
	}
	if turns[1].Role != store.RoleAssistant || turns[1].Text != result.Answer {
		t.Errorf("assistant turn = %+v", turns[1])
	}
	if len(turns[1].Trace) == 0 {
		t.Error("assistant turn should carry the trace")
	}
}

func TestAnswerFallsBackOnce(t *testing.T) {
	sqlEngine := &stubStructured{result: &structured.Result{
		Attempts: []store.StructuredAttempt{{Index: 1, Outcome: store.OutcomeEmpty}},
	}}
	ragEngine := &stubRetrieval{result: &retrieval.Result{
		Solved:   true,
		Answer:   "The policy allows refunds within 30 days.",
		Evidence: []store.RetrievedDoc{{ChunkID: "c1", Content: "refund policy"}},
		Rounds:   []store.RetrievalRound{{Index: 1, Query: "refund policy"}},
	}}
	orch, _ := newTestOrchestrator("STRUCTURED", &stubLLM{err: llm.ErrUnavailable}, sqlEngine, ragEngine)

	result, err := orch.Answer(context.Background(), "What is the refund policy?", "s1")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if result.Status != store.StatusOK {
		t.Errorf("status = %q, want %q", result.Status, store.StatusOK)
	}
	if result.Answer != "The policy allows refunds within 30 days." {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.SQLQuery != "" {
		t.Errorf("sql query = %q, retrieval wins must not carry one", result.SQLQuery)
	}

	want := []string{
		store.StepIntentRecognition,
		store.StepStructuredQuery,
		store.StepFallback,
		store.StepRetrieval,
		store.StepFinalAnswer,
	}
	got := stepNames(result.Trace)
	if len(got) != len(want) {
		t.Fatalf("trace steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trace steps = %v, want %v", got, want)
		}
	}

	fallback := result.Trace[2]
	if fallback.Details["from"] != store.EngineStructured || fallback.Details["to"] != store.EngineRetrieval {
		t.Errorf("fallback details = %+v", fallback.Details)
	}
	if result.Trace[3].Strategy != StrategyFallback {
		t.Errorf("retrieval step strategy = %q, want %q", result.Trace[3].Strategy, StrategyFallback)
	}
}

func TestAnswerBothEnginesFail(t *testing.T) {
	sqlEngine := &stubStructured{result: &structured.Result{}}
	ragEngine := &stubRetrieval{result: &retrieval.Result{}}
	orch, _ := newTestOrchestrator("RETRIEVAL", &stubLLM{}, sqlEngine, ragEngine)

	result, err := orch.Answer(context.Background(), "Unanswerable question", "s1")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if result.Status != store.StatusFailed {
		t.Errorf("status = %q, want %q", result.Status, store.StatusFailed)
	}
	if result.Answer != ApologyAnswer {
		t.Errorf("answer = %q, want the apology", result.Answer)
	}
	if sqlEngine.calls != 1 || ragEngine.calls != 1 {
		t.Errorf("engine calls = %d/%d, each engine runs exactly once", ragEngine.calls, sqlEngine.calls)
	}

	fallbacks := 0
	for _, step := range result.Trace {
		if step.Step == store.StepFallback {
			fallbacks++
		}
	}
	if fallbacks != 1 {
		t.Errorf("fallback steps = %d, the switch happens at most once", fallbacks)
	}
}

func TestAnswerEngineErrorDegradesToFallback(t *testing.T) {
	sqlEngine := &stubStructured{result: &structured.Result{}, err: errors.New("store offline")}
	ragEngine := &stubRetrieval{result: &retrieval.Result{Solved: true, Answer: "From the documents."}}
	orch, _ := newTestOrchestrator("STRUCTURED", &stubLLM{}, sqlEngine, ragEngine)

	result, err := orch.Answer(context.Background(), "Anything?", "s1")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if result.Status != store.StatusOK {
		t.Errorf("status = %q, an engine failure must not fail the answer while the fallback can win", result.Status)
	}
	if result.Answer != "From the documents." {
		t.Errorf("answer = %q", result.Answer)
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	orch, _ := newTestOrchestrator("RETRIEVAL", &stubLLM{}, &stubStructured{}, &stubRetrieval{})

	_, err := orch.Answer(context.Background(), "   ", "s1")
	if !errors.Is(err, ErrInternal) {
		t.Errorf("err = %v, want ErrInternal", err)
	}
}

func TestAnswerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sqlEngine := &stubStructured{result: &structured.Result{}}
	ragEngine := &stubRetrieval{result: &retrieval.Result{}}
	orch, sessions := newTestOrchestrator("STRUCTURED", &stubLLM{}, sqlEngine, ragEngine)

	result, err := orch.Answer(ctx, "How many sales?", "s1")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if result.Status != store.StatusCancelled {
		t.Errorf("status = %q, want %q", result.Status, store.StatusCancelled)
	}
	if sqlEngine.calls != 0 {
		t.Errorf("engine calls = %d, cancelled work must stop before the engines", sqlEngine.calls)
	}

	turns := sessions.GetOrCreate("s1").Recent(10)
	if len(turns) != 1 || turns[0].Role != store.RoleUser {
		t.Errorf("session turns = %+v, only the user turn should persist on cancellation", turns)
	}
}

func TestAnswerHistoryExcludesCurrentQuestion(t *testing.T) {
	sqlEngine := &stubStructured{result: &structured.Result{
		Solved: true,
		Rows:   []map[string]any{{"n": 1}},
		Query:  "SELECT 1",
	}}
	orch, sessions := newTestOrchestrator("STRUCTURED", &stubLLM{response: "One."}, sqlEngine, &stubRetrieval{})

	if _, err := orch.Answer(context.Background(), "First question", "s1"); err != nil {
		t.Fatalf("first Answer returned error: %v", err)
	}
	if sqlEngine.history != "none" {
		t.Errorf("first call history = %q, want none", sqlEngine.history)
	}

	if _, err := orch.Answer(context.Background(), "Second question", "s1"); err != nil {
		t.Fatalf("second Answer returned error: %v", err)
	}
	if sqlEngine.history == "none" {
		t.Error("second call should see the first exchange as history")
	}

	turns := sessions.GetOrCreate("s1").Recent(10)
	if len(turns) != 4 {
		t.Errorf("session turns = %d, want 4 after two exchanges", len(turns))
	}
}

func TestAnswerSynthesisFailureFallsBackToRows(t *testing.T) {
	sqlEngine := &stubStructured{result: &structured.Result{
		Solved: true,
		Rows:   []map[string]any{{"total": 42}},
		Query:  "SELECT COUNT(*) AS total FROM sales",
	}}
	orch, _ := newTestOrchestrator("STRUCTURED", &stubLLM{err: llm.ErrTimeout}, sqlEngine, &stubRetrieval{})

	result, err := orch.Answer(context.Background(), "How many sales?", "s1")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if result.Status != store.StatusOK {
		t.Errorf("status = %q, the rows still answer the question", result.Status)
	}
	if result.Answer == "" {
		t.Error("answer should fall back to the rendered rows")
	}
}

func TestAnswerTimingCoversPhases(t *testing.T) {
	sqlEngine := &stubStructured{result: &structured.Result{Solved: true, Rows: []map[string]any{{"n": 1}}, Query: "SELECT 1"}}
	orch, _ := newTestOrchestrator("STRUCTURED", &stubLLM{response: "One."}, sqlEngine, &stubRetrieval{})

	result, err := orch.Answer(context.Background(), "How many?", "s1")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	for _, phase := range []string{"intent_recognition", "structured_query", "final_answer"} {
		if _, ok := result.Timing[phase]; !ok {
			t.Errorf("timing is missing phase %q: %v", phase, result.Timing)
		}
	}
}

func TestRenderRows(t *testing.T) {
	got := renderRows([]map[string]any{
		{"b": 2, "a": "x"},
		{"b": 3, "a": "y"},
	})
	want := "a | b\nx | 2\ny | 3\n"
	if got != want {
		t.Errorf("renderRows() = %q, want %q", got, want)
	}

	if got := renderRows(nil); got != "(no rows)" {
		t.Errorf("renderRows(nil) = %q", got)
	}
}

func TestPlanStrategies(t *testing.T) {
	runs := planStrategies(store.EngineRetrieval)
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].Engine != store.EngineRetrieval || runs[0].Label != StrategyInitial {
		t.Errorf("first run = %+v", runs[0])
	}
	if runs[1].Engine != store.EngineStructured || runs[1].Label != StrategyFallback {
		t.Errorf("second run = %+v", runs[1])
	}
}
