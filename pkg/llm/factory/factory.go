package factory

import (
	"fmt"
	"time"

	"ai-analyst-be/pkg/llm"
	"ai-analyst-be/pkg/llm/ollama"
	"ai-analyst-be/pkg/llm/openai"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string, timeout time.Duration) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName, timeout), nil
	case "openai", "lmstudio":
		return openai.NewOpenAIProvider(baseURL, apiKey, modelName, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
