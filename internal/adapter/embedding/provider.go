package embedding

import (
	"fmt"

	"github.com/cd8875/clinical-ai-assistant/config"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/analyzer"
	"github.com/cd8875/clinical-ai-assistant/internal/port"
)

// New builds the embedder named by cfg.Provider.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	opts := Options{
		APIKeyEnv: cfg.APIKeyEnv,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		Dimension: cfg.Dimension,
		Timeout:   cfg.Timeout.Duration(),
	}
	switch cfg.Provider {
	case "hash":
		return NewHashEmbedder(cfg.Dimension, analyzer.NewTokenizer()), nil
	case "openai":
		return NewOpenAIEmbedder(opts)
	case "jina":
		return NewJinaEmbedder(opts)
	case "ollama":
		return NewOllamaEmbedder(opts)
	}
	return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
}
