package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainEmbedder adapts a langchaingo embeddings.Embedder.
type LangchainEmbedder struct {
	name     string
	embedder embeddings.Embedder
}

// NewLangchainEmbedder creates an OpenAI- or Ollama-backed embedder.
func NewLangchainEmbedder(cfg Config) (*LangchainEmbedder, error) {
	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai embedding client: %w", err)
		}
		client = llm
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedding client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("provider %q has no langchain embedder", cfg.Provider)
	}

	var opts []embeddings.Option
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	e, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return WrapLangchain(cfg.Provider+":"+cfg.Model, e), nil
}

// WrapLangchain adapts an existing langchaingo embedder under name.
func WrapLangchain(name string, e embeddings.Embedder) *LangchainEmbedder {
	return &LangchainEmbedder{name: name, embedder: e}
}

// Embed embeds a single query text.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%s embed: %w", e.name, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%s embed: empty vector", e.name)
	}
	return vec, nil
}

// EmbedBatch embeds documents in input order.
func (e *LangchainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%s batch embed: %w", e.name, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%s batch embed: got %d vectors for %d texts", e.name, len(vecs), len(texts))
	}
	return vecs, nil
}

// Name returns provider:model.
func (e *LangchainEmbedder) Name() string {
	return e.name
}
