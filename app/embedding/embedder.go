package embedding

import (
	"context"
	"fmt"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Embedder turns text into a vector. An empty vector means the backend had
// nothing to return.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type Config struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
}

// New builds the embedder for the configured backend.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIEmbedder(cfg)
	case ProviderGemini:
		return NewGenAIEmbedder(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
