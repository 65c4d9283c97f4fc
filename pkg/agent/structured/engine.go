// Package structured implements the multi-attempt text-to-SQL engine.
package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"ai-analyst-be/pkg/agent/prompts"
	"ai-analyst-be/pkg/llm"
	"ai-analyst-be/pkg/store"
	"ai-analyst-be/pkg/tabular"
)

// TabularStore is the slice of the tabular capability this engine consumes.
type TabularStore interface {
	Execute(ctx context.Context, query string) ([]map[string]any, error)
	TableName() string
	Columns() []string
}

// Engine generates and executes structured queries, retrying with alternate
// column hints on failure.
type Engine struct {
	llmProvider llm.LLMProvider
	store       TabularStore
	maxAttempts int
	logger      *log.Logger
}

// NewEngine creates a new structured query engine. maxAttempts bounds the
// generation/execution tries per question.
func NewEngine(llmProvider llm.LLMProvider, tabularStore TabularStore, maxAttempts int, logger *log.Logger) *Engine {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Engine{
		llmProvider: llmProvider,
		store:       tabularStore,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Result is the outcome of one Solve call. Attempts always carries the full
// ordered attempt record, success or not.
type Result struct {
	Solved   bool
	Rows     []map[string]any
	Query    string
	Attempts []store.StructuredAttempt
}

// Solve runs up to maxAttempts generation/execution rounds. The first attempt
// carries no hint; each retry carries a different hint from a deterministic
// candidate list so subsequent attempts explore alternative structured
// interpretations of the same question. The first non-empty, error-free
// result terminates the loop. A context cancellation stops the loop and is
// returned so the caller can surface the partial record.
func (e *Engine) Solve(ctx context.Context, question, history string) (*Result, error) {
	result := &Result{}

	var hints []string // lazily populated after the first failure
	hint := ""

	for i := 1; i <= e.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		attempt := store.StructuredAttempt{Index: i, Hint: hint}

		query, err := e.generateQuery(ctx, question, history, hint)
		if err != nil {
			e.logger.Printf("[SQL] Attempt %d: generation failed: %v", i, err)
			attempt.Error = err.Error()
			attempt.Outcome = store.OutcomeError
			result.Attempts = append(result.Attempts, attempt)
			hints, hint = e.nextHint(ctx, question, hints, i, true)
			continue
		}
		attempt.Query = query

		rows, err := e.store.Execute(ctx, query)
		switch {
		case err != nil:
			e.logger.Printf("[SQL] Attempt %d: execution failed: %v", i, err)
			attempt.Error = err.Error()
			attempt.Outcome = store.OutcomeError
			result.Attempts = append(result.Attempts, attempt)
			hints, hint = e.nextHint(ctx, question, hints, i, errors.Is(err, tabular.ErrSyntax))
		case len(rows) == 0:
			e.logger.Printf("[SQL] Attempt %d: query matched no rows", i)
			attempt.Outcome = store.OutcomeEmpty
			result.Attempts = append(result.Attempts, attempt)
			hints, hint = e.nextHint(ctx, question, hints, i, false)
		default:
			e.logger.Printf("[SQL] Attempt %d: success, %d rows", i, len(rows))
			attempt.Rows = rows
			attempt.Outcome = store.OutcomeSuccess
			result.Attempts = append(result.Attempts, attempt)
			result.Solved = true
			result.Rows = rows
			result.Query = query
			return result, nil
		}
	}

	return result, nil
}

func (e *Engine) generateQuery(ctx context.Context, question, history, hint string) (string, error) {
	prompt := prompts.BuildSQLPrompt(question, e.store.TableName(), e.store.Columns(), history, hint)
	response, err := e.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		return "", err
	}

	query := strings.TrimSpace(response)
	// Strip markdown fences the model may emit despite instructions
	query = strings.ReplaceAll(query, "```sql", "")
	query = strings.ReplaceAll(query, "```", "")
	query = strings.TrimSpace(query)

	if query == "" {
		return "", fmt.Errorf("model returned an empty query")
	}
	return query, nil
}

// nextHint picks the hint for the following attempt. Malformed queries get a
// syntax correction hint; empty results and execution misses walk the
// deterministic column candidate list. The candidate list is fetched once, on
// first need.
func (e *Engine) nextHint(ctx context.Context, question string, hints []string, attemptIdx int, syntaxFailure bool) ([]string, string) {
	if attemptIdx >= e.maxAttempts {
		return hints, ""
	}

	if syntaxFailure {
		return hints, prompts.SyntaxHint()
	}

	if hints == nil {
		hints = e.columnCandidates(ctx, question)
	}

	// Walk candidates by retry position so each retry explores a different
	// column interpretation.
	pos := attemptIdx - 1
	if pos < len(hints) {
		return hints, prompts.ColumnHint(hints[pos])
	}
	return hints, prompts.SyntaxHint()
}

// columnCandidates asks the model which columns plausibly carry the question's
// filter entities, then pads with the remaining schema columns so the list is
// deterministic and never empty.
func (e *Engine) columnCandidates(ctx context.Context, question string) []string {
	known := e.store.Columns()
	candidates := make([]string, 0, len(known))
	seen := make(map[string]bool)

	prompt := prompts.BuildColumnCandidatesPrompt(question, e.store.TableName(), known)
	response, err := e.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		e.logger.Printf("[SQL] Column candidate analysis failed: %v", err)
	} else {
		var parsed struct {
			Candidates []string `json:"candidates"`
			Reason     string   `json:"reason"`
		}
		if jsonContent := extractJSON(response); jsonContent != "" {
			if err := json.Unmarshal([]byte(jsonContent), &parsed); err == nil {
				for _, c := range parsed.Candidates {
					if isKnownColumn(known, c) && !seen[c] {
						candidates = append(candidates, c)
						seen[c] = true
					}
				}
			}
		}
	}

	// Schema order backstop keeps retries meaningful even when the model
	// offered nothing usable.
	for _, c := range known {
		if !seen[c] {
			candidates = append(candidates, c)
			seen[c] = true
		}
	}

	return candidates
}

func isKnownColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}
