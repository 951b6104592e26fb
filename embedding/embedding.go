// Package embedding turns text into vectors for similarity search. It defines
// the Embedder capability and ships langchaingo (OpenAI, Ollama) and Google
// GenAI implementations.
package embedding

import (
	"context"
	"fmt"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns the embedding of a single query text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name identifies the backend and model, e.g. "openai:text-embedding-3-small".
	Name() string
}

// Config selects an embedding backend.
type Config struct {
	Provider string `yaml:"provider"` // "openai", "ollama", "gemini", or "none"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	// TaskType is passed to GenAI; empty means RETRIEVAL_QUERY.
	TaskType  string `yaml:"task_type"`
	BatchSize int    `yaml:"batch_size"`
}

// DefaultModel returns the embedding model used for provider when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "ollama":
		return "nomic-embed-text"
	case "gemini":
		return "gemini-embedding-001"
	default:
		return "text-embedding-3-small"
	}
}

// NewEmbedder builds the Embedder described by cfg. Provider "" or "none"
// yields a nil Embedder and no error: retrieval then runs without context.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai", "ollama":
		return NewLangchainEmbedder(cfg)
	case "gemini":
		return NewGenAIEmbedder(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
