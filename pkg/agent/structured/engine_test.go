package structured

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"

	"ai-analyst-be/pkg/agent/prompts"
	"ai-analyst-be/pkg/llm"
	"ai-analyst-be/pkg/store"
	"ai-analyst-be/pkg/tabular"
)

// scriptedLLM returns canned responses in call order.
type scriptedLLM struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedLLM) next() (string, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		return "", fmt.Errorf("unexpected model call %d", idx+1)
	}
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	return s.responses[idx], err
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.next()
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.next()
}

// fakeStore replays scripted execution outcomes.
type fakeStore struct {
	table    string
	columns  []string
	rows     [][]map[string]any
	errs     []error
	executed []string
}

func (f *fakeStore) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	idx := len(f.executed)
	f.executed = append(f.executed, query)
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	var rows []map[string]any
	if idx < len(f.rows) {
		rows = f.rows[idx]
	}
	return rows, err
}

func (f *fakeStore) TableName() string { return f.table }
func (f *fakeStore) Columns() []string { return f.columns }

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestSolveFirstAttemptSuccess(t *testing.T) {
	model := &scriptedLLM{responses: []string{"```sql\nSELECT COUNT(*) AS total FROM sales\n```"}}
	tab := &fakeStore{
		table:   "sales",
		columns: []string{"region", "amount"},
		rows:    [][]map[string]any{{{"total": 42}}},
	}
	engine := NewEngine(model, tab, 3, discardLogger())

	result, err := engine.Solve(context.Background(), "How many sales?", "none")
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	if !result.Solved {
		t.Fatal("expected a solved result")
	}
	if result.Query != "SELECT COUNT(*) AS total FROM sales" {
		t.Errorf("query = %q, markdown fences should be stripped", result.Query)
	}
	if len(result.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(result.Attempts))
	}
	if result.Attempts[0].Outcome != store.OutcomeSuccess {
		t.Errorf("outcome = %q, want %q", result.Attempts[0].Outcome, store.OutcomeSuccess)
	}
	if result.Attempts[0].Hint != "" {
		t.Errorf("first attempt carried hint %q, want none", result.Attempts[0].Hint)
	}
}

func TestSolveExhaustsAttemptBudget(t *testing.T) {
	// Call order: query gen, column candidates, query gen, query gen.
	model := &scriptedLLM{responses: []string{
		"SELECT * FROM sales WHERE region = 'north'",
		`{"candidates": ["region", "amount"]}`,
		"SELECT * FROM sales WHERE amount > 10",
		"SELECT * FROM sales LIMIT 1",
	}}
	execErr := fmt.Errorf("%w: no such column: north", tabular.ErrExecution)
	tab := &fakeStore{
		table:   "sales",
		columns: []string{"region", "amount"},
		errs:    []error{execErr, execErr, execErr},
	}
	engine := NewEngine(model, tab, 3, discardLogger())

	result, err := engine.Solve(context.Background(), "Sales in the north?", "none")
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	if result.Solved {
		t.Fatal("expected an unsolved result")
	}
	if len(result.Attempts) != 3 {
		t.Fatalf("attempts = %d, want the full budget of 3", len(result.Attempts))
	}
	for i, a := range result.Attempts {
		if a.Outcome != store.OutcomeError {
			t.Errorf("attempt %d outcome = %q, want %q", i+1, a.Outcome, store.OutcomeError)
		}
		if a.Index != i+1 {
			t.Errorf("attempt index = %d, want %d", a.Index, i+1)
		}
	}
}

func TestSolveRetriesWithSyntaxHint(t *testing.T) {
	model := &scriptedLLM{responses: []string{
		"SELECT FROM sales",
		"SELECT region FROM sales",
	}}
	tab := &fakeStore{
		table:   "sales",
		columns: []string{"region"},
		errs:    []error{fmt.Errorf("%w: near \"FROM\"", tabular.ErrSyntax)},
		rows:    [][]map[string]any{nil, {{"region": "north"}}},
	}
	engine := NewEngine(model, tab, 3, discardLogger())

	result, err := engine.Solve(context.Background(), "Which regions?", "none")
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	if !result.Solved {
		t.Fatal("expected the retry to succeed")
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(result.Attempts))
	}
	if result.Attempts[1].Hint != prompts.SyntaxHint() {
		t.Errorf("retry hint = %q, want the syntax correction hint", result.Attempts[1].Hint)
	}
}

func TestSolveRetriesWithColumnHintOnEmptyResult(t *testing.T) {
	// Call order: query gen, column candidates, query gen.
	model := &scriptedLLM{responses: []string{
		"SELECT * FROM sales WHERE customer = 'Acme'",
		`{"candidates": ["client_name"]}`,
		"SELECT * FROM sales WHERE client_name = 'Acme'",
	}}
	tab := &fakeStore{
		table:   "sales",
		columns: []string{"client_name", "amount"},
		rows:    [][]map[string]any{{}, {{"client_name": "Acme", "amount": "10"}}},
	}
	engine := NewEngine(model, tab, 3, discardLogger())

	result, err := engine.Solve(context.Background(), "Orders from Acme?", "none")
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	if !result.Solved {
		t.Fatal("expected the retry to succeed")
	}
	if result.Attempts[0].Outcome != store.OutcomeEmpty {
		t.Errorf("first outcome = %q, want %q", result.Attempts[0].Outcome, store.OutcomeEmpty)
	}
	if result.Attempts[1].Hint != prompts.ColumnHint("client_name") {
		t.Errorf("retry hint = %q, want a hint for the suggested column", result.Attempts[1].Hint)
	}
}

func TestSolveRecordsGenerationFailure(t *testing.T) {
	model := &scriptedLLM{
		responses: []string{"", "", ""},
		errs:      []error{llm.ErrUnavailable, nil, llm.ErrUnavailable},
	}
	tab := &fakeStore{table: "sales", columns: []string{"amount"}}
	engine := NewEngine(model, tab, 2, discardLogger())

	result, err := engine.Solve(context.Background(), "Total amount?", "none")
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	if result.Solved {
		t.Fatal("expected an unsolved result")
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(result.Attempts))
	}
	if result.Attempts[0].Outcome != store.OutcomeError {
		t.Errorf("outcome = %q, want %q", result.Attempts[0].Outcome, store.OutcomeError)
	}
	if result.Attempts[0].Error == "" {
		t.Error("generation failure should be recorded on the attempt")
	}
}

func TestSolveStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &scriptedLLM{responses: []string{"SELECT 1"}}
	tab := &fakeStore{table: "sales", columns: []string{"amount"}}
	engine := NewEngine(model, tab, 3, discardLogger())

	result, err := engine.Solve(ctx, "Anything?", "none")
	if err == nil {
		t.Fatal("expected the context error to surface")
	}
	if len(result.Attempts) != 0 {
		t.Errorf("attempts = %d, want none after immediate cancellation", len(result.Attempts))
	}
}

func TestColumnCandidatesBackstop(t *testing.T) {
	// Model offers one valid and one unknown column; the schema pads the rest.
	model := &scriptedLLM{responses: []string{`{"candidates": ["amount", "bogus"]}`}}
	tab := &fakeStore{table: "sales", columns: []string{"region", "amount", "date"}}
	engine := NewEngine(model, tab, 3, discardLogger())

	got := engine.columnCandidates(context.Background(), "Total amount?")
	want := []string{"amount", "region", "date"}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidates = %v, want %v", got, want)
		}
	}
}
