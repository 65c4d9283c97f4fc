package agent

import "ai-analyst-be/pkg/store"

// Strategy labels recorded on engine trace steps.
const (
	StrategyInitial  = "initial"
	StrategyFallback = "fallback"
)

// ApologyAnswer is returned when both engines fail to produce an answer.
const ApologyAnswer = "I'm sorry, I could not find an answer to your question in the available data."

type strategyRun struct {
	Engine string
	Label  string
}

// planStrategies builds the bounded execution queue for one question: the
// routed engine first, the other engine as the single permitted fallback.
func planStrategies(primary string) []strategyRun {
	return []strategyRun{
		{Engine: primary, Label: StrategyInitial},
		{Engine: counterpart(primary), Label: StrategyFallback},
	}
}

func counterpart(engine string) string {
	if engine == store.EngineStructured {
		return store.EngineRetrieval
	}
	return store.EngineStructured
}
