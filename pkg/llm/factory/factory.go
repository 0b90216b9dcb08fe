package factory

import (
	"fmt"

	"kb-assistant-be/pkg/llm"
	"kb-assistant-be/pkg/llm/ollama"
	"kb-assistant-be/pkg/llm/openai"
)

type Config struct {
	Provider string // "ollama", "openai" or "none"
	Model    string
	BaseURL  string
	APIKey   string
}

// NewLLMProvider returns (nil, nil) for "none" or an empty provider: the resolver then runs without an LLM stage.
func NewLLMProvider(cfg Config) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return openai.NewProvider(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
