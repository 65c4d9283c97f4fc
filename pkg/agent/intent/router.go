// Package intent classifies questions onto one of the two answering engines.
package intent

import (
	"context"
	"log"
	"strings"

	"ai-analyst-be/pkg/agent/prompts"
	"ai-analyst-be/pkg/llm"
	"ai-analyst-be/pkg/store"
)

// Router performs pure LLM-based intent classification. It never answers the
// question and never touches the data stores.
type Router struct {
	llmProvider llm.LLMProvider
	window      int // max history turns passed to the classifier
	logger      *log.Logger
}

// NewRouter creates a new intent router
func NewRouter(llmProvider llm.LLMProvider, window int, logger *log.Logger) *Router {
	if window <= 0 {
		window = 5
	}
	return &Router{
		llmProvider: llmProvider,
		window:      window,
		logger:      logger,
	}
}

// Classify labels the question STRUCTURED or RETRIEVAL. It fails soft: any
// model error or unparseable label defaults to RETRIEVAL with the reason
// recorded on the decision, so the fallback is visible in the trace.
func (r *Router) Classify(ctx context.Context, question string, history []store.Turn) store.IntentDecision {
	if len(history) > r.window {
		history = history[len(history)-r.window:]
	}

	prompt := prompts.BuildIntentPrompt(question, prompts.FormatHistory(history))

	// Temperature 0 for deterministic labels
	response, err := r.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		r.logger.Printf("[INTENT] Classification failed, defaulting to RETRIEVAL: %v", err)
		return store.IntentDecision{
			Engine:         store.EngineRetrieval,
			UsedHistory:    len(history) > 0,
			FallbackReason: "classification call failed: " + err.Error(),
		}
	}

	decision := parseLabel(response)
	decision.UsedHistory = len(history) > 0

	if decision.FallbackReason != "" {
		r.logger.Printf("[INTENT] Unparseable label %q, defaulting to RETRIEVAL", strings.TrimSpace(response))
	} else {
		r.logger.Printf("[INTENT] Classified as %s", decision.Engine)
	}

	return decision
}

// parseLabel normalizes the raw model output to an engine label. RETRIEVAL is
// the safe default: it degrades to a broad semantic search rather than a
// malformed query against the wrong schema.
func parseLabel(response string) store.IntentDecision {
	raw := strings.TrimSpace(response)
	normalized := strings.ToUpper(raw)

	switch {
	case strings.Contains(normalized, store.EngineStructured), strings.Contains(normalized, "SQL"):
		return store.IntentDecision{Engine: store.EngineStructured, RawSignal: raw}
	case strings.Contains(normalized, store.EngineRetrieval), strings.Contains(normalized, "RAG"):
		return store.IntentDecision{Engine: store.EngineRetrieval, RawSignal: raw}
	default:
		return store.IntentDecision{
			Engine:         store.EngineRetrieval,
			RawSignal:      raw,
			FallbackReason: "unparseable classification label",
		}
	}
}
