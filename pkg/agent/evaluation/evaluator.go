// Package evaluation grades finished answers against the material they were
// drawn from, using the model as the judge.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ai-analyst-be/pkg/agent/prompts"
	"ai-analyst-be/pkg/llm"
	"ai-analyst-be/pkg/store"
)

// Evaluator scores one answer per call. Scoring is advisory: it runs after
// the answer is final and a failed evaluation never fails the answer.
type Evaluator struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

func NewEvaluator(llmProvider llm.LLMProvider, logger *log.Logger) *Evaluator {
	return &Evaluator{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

// Evaluate grades the answer's faithfulness and relevancy against the cited
// sources. Returns nil when there is nothing gradable (no answer or no
// sources).
func (e *Evaluator) Evaluate(ctx context.Context, question, answer string, sources []store.RetrievedDoc) (map[string]float64, error) {
	if strings.TrimSpace(answer) == "" || len(sources) == 0 {
		return nil, nil
	}

	contexts := make([]string, len(sources))
	for i, s := range sources {
		contexts[i] = s.Content
	}

	response, err := e.llmProvider.Generate(ctx,
		prompts.BuildEvaluationPrompt(question, answer, contexts),
		llm.WithTemperature(0.0))
	if err != nil {
		return nil, fmt.Errorf("evaluation call: %w", err)
	}

	scores, err := ParseScores(response)
	if err != nil {
		return nil, err
	}

	e.logger.Printf("[EVAL] faithfulness=%.2f answer_relevancy=%.2f", scores["faithfulness"], scores["answer_relevancy"])
	return scores, nil
}

// ParseScores extracts the score object from the model reply. Scores are
// clamped to [0, 1]; a reply missing both dimensions is an error.
func ParseScores(response string) (map[string]float64, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no score object in evaluation reply")
	}

	var parsed map[string]float64
	if err := json.Unmarshal([]byte(response[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode evaluation reply: %w", err)
	}

	scores := make(map[string]float64, 2)
	for _, dim := range []string{"faithfulness", "answer_relevancy"} {
		if v, ok := parsed[dim]; ok {
			scores[dim] = clamp(v)
		}
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("evaluation reply carries no known dimensions")
	}
	return scores, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
