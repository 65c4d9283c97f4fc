// Package retrieval implements the bounded refine-and-judge document
// retrieval loop.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ai-analyst-be/pkg/agent/prompts"
	"ai-analyst-be/pkg/llm"
	"ai-analyst-be/pkg/store"
)

// DocumentIndex is the slice of the document index this engine consumes.
// Search returns up to k documents ordered by descending relevance.
type DocumentIndex interface {
	Search(ctx context.Context, query string, k int) ([]store.RetrievedDoc, error)
}

// Engine runs iterative retrieval: search, judge, refine the query, repeat
// until the model declares the question solved or the round budget runs out.
type Engine struct {
	llmProvider llm.LLMProvider
	index       DocumentIndex
	maxRounds   int
	batchSize   int
	logger      *log.Logger
}

func NewEngine(llmProvider llm.LLMProvider, index DocumentIndex, maxRounds, batchSize int, logger *log.Logger) *Engine {
	if maxRounds <= 0 {
		maxRounds = 3
	}
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Engine{
		llmProvider: llmProvider,
		index:       index,
		maxRounds:   maxRounds,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Result is the outcome of one Solve call. Evidence holds every distinct
// document consulted, in the order first seen; Rounds is the full round
// record regardless of success.
type Result struct {
	Solved   bool
	Answer   string
	Evidence []store.RetrievedDoc
	Rounds   []store.RetrievalRound
}

// Solve runs up to maxRounds search/judge iterations. Each round searches
// wider than the batch size so deduplication against already-seen chunks
// still yields fresh material, then asks the model to judge the accumulated
// evidence. Two consecutive rounds with no new documents short-circuit the
// budget. On exhaustion with evidence in hand, a last-resort summary is
// attempted from the accumulated clues.
func (e *Engine) Solve(ctx context.Context, question, history string) (*Result, error) {
	result := &Result{}
	seen := make(map[string]bool)
	var clues []string
	query := question
	emptyStreak := 0

	for round := 1; round <= e.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		roundRec := store.RetrievalRound{Index: round, Query: query}

		docs, err := e.index.Search(ctx, query, e.batchSize*2)
		if err != nil {
			e.logger.Printf("[RETRIEVAL] Round %d: search failed: %v", round, err)
			roundRec.Error = err.Error()
			result.Rounds = append(result.Rounds, roundRec)
			return result, err
		}

		fresh := make([]store.RetrievedDoc, 0, e.batchSize)
		for _, d := range docs {
			if seen[d.ChunkID] {
				continue
			}
			seen[d.ChunkID] = true
			fresh = append(fresh, d)
			if len(fresh) == e.batchSize {
				break
			}
		}
		roundRec.Docs = fresh
		result.Evidence = append(result.Evidence, fresh...)

		if len(fresh) == 0 {
			e.logger.Printf("[RETRIEVAL] Round %d: no new documents for %q", round, query)
			emptyStreak++
			roundRec.Judgment = store.Judgment{Status: store.JudgmentContinue}
			result.Rounds = append(result.Rounds, roundRec)
			if emptyStreak >= 2 {
				e.logger.Printf("[RETRIEVAL] Two consecutive empty rounds, stopping early")
				break
			}
			// Nothing new to judge; fall back to the original question so
			// the next round is not stuck on a dead-end refinement.
			query = question
			continue
		}
		emptyStreak = 0

		judgment, err := e.judge(ctx, question, history, strings.Join(clues, "\n"), fresh)
		if err != nil {
			e.logger.Printf("[RETRIEVAL] Round %d: judgment failed: %v", round, err)
			roundRec.Error = err.Error()
			result.Rounds = append(result.Rounds, roundRec)
			return result, err
		}
		roundRec.Judgment = judgment
		result.Rounds = append(result.Rounds, roundRec)

		if judgment.Status == store.JudgmentSolved {
			e.logger.Printf("[RETRIEVAL] Round %d: solved", round)
			result.Solved = true
			result.Answer = judgment.Answer
			return result, nil
		}

		if judgment.Clues != "" && !strings.EqualFold(judgment.Clues, "none") {
			clues = append(clues, fmt.Sprintf("[Round %d Clues]: %s", round, judgment.Clues))
		}
		if judgment.NextQuery != "" {
			query = judgment.NextQuery
		} else {
			query = question
		}
	}

	if len(result.Evidence) == 0 {
		return result, nil
	}

	// Budget exhausted but evidence was gathered. Attempt a summary answer
	// from the clue trail before conceding.
	answer, err := e.summarize(ctx, question, history, clues, result.Evidence)
	if err != nil {
		e.logger.Printf("[RETRIEVAL] Summary synthesis failed: %v", err)
		return result, nil
	}
	if answer == "" || strings.Contains(answer, prompts.NoAnswerSentinel) {
		return result, nil
	}

	result.Solved = true
	result.Answer = answer
	return result, nil
}

func (e *Engine) judge(ctx context.Context, question, history, accumulatedClues string, docs []store.RetrievedDoc) (store.Judgment, error) {
	contexts := make([]string, len(docs))
	for i, d := range docs {
		contexts[i] = d.Content
	}

	messages := []llm.Message{
		{Role: "system", Content: prompts.JudgmentSystemPrompt()},
		{Role: "user", Content: prompts.BuildJudgmentPrompt(question, accumulatedClues, contexts, history)},
	}

	response, err := e.llmProvider.Chat(ctx, messages, llm.WithTemperature(0.0))
	if err != nil {
		return store.Judgment{}, err
	}

	return ParseJudgment(response), nil
}

// summarize falls back to the raw document contents when no clues were
// extracted along the way, so a SOLVED-less run with relevant evidence can
// still produce an answer.
func (e *Engine) summarize(ctx context.Context, question, history string, clues []string, evidence []store.RetrievedDoc) (string, error) {
	clueText := strings.Join(clues, "\n")
	if clueText == "" {
		parts := make([]string, len(evidence))
		for i, d := range evidence {
			parts[i] = d.Content
		}
		clueText = strings.Join(parts, "\n")
	}

	response, err := e.llmProvider.Generate(ctx, prompts.BuildSummaryPrompt(question, clueText, history), llm.WithTemperature(0.0))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// ParseJudgment interprets the line-oriented judgment reply. SOLVED carries
// the answer on its CONTENT line; SEARCH_MORE carries CLUES and NEXT_QUERY.
// GIVE_UP and anything unrecognizable normalize to a continue verdict with no
// suggested query, so a confused model costs one round, never the whole
// answer.
func ParseJudgment(response string) store.Judgment {
	judgment := store.Judgment{Status: store.JudgmentContinue}

	status := ""
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "STATUS:"):
			status = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(line, "STATUS:")))
		case strings.HasPrefix(line, "CONTENT:"):
			judgment.Answer = strings.TrimSpace(strings.TrimPrefix(line, "CONTENT:"))
		case strings.HasPrefix(line, "CLUES:"):
			judgment.Clues = strings.TrimSpace(strings.TrimPrefix(line, "CLUES:"))
		case strings.HasPrefix(line, "NEXT_QUERY:"):
			judgment.NextQuery = strings.TrimSpace(strings.TrimPrefix(line, "NEXT_QUERY:"))
		}
	}

	if status == "SOLVED" && judgment.Answer != "" {
		judgment.Status = store.JudgmentSolved
	}
	// SEARCH_MORE and GIVE_UP both map to a continue verdict; GIVE_UP simply
	// arrives without a next query and lets the round budget decide.
	if status == "GIVE_UP" {
		judgment.NextQuery = ""
	}

	return judgment
}
