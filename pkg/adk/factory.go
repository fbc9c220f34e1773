package adk

import (
	"context"
	"fmt"
	"time"
)

// NewService returns the inference backend registered under providerName.
func NewService(ctx context.Context, providerName, apiKey, baseURL string, timeout time.Duration) (InferenceService, error) {
	switch providerName {
	case "ollama":
		return NewOllamaService(baseURL, timeout), nil
	case "openai":
		return NewOpenAIService(apiKey, baseURL, timeout), nil
	case "gemini":
		if apiKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		return NewGeminiService(ctx, apiKey)
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
}
