package unifiedllm

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Backend names accepted by NewAdapter.
const (
	BackendGollm     = "gollm"
	BackendLangchain = "langchain"
)

// ProviderConfig selects and configures a provider adapter.
type ProviderConfig struct {
	Backend     string // "gollm" or "langchain"; empty means "langchain"
	Provider    string // "openai", "anthropic", "ollama"
	Model       string
	APIKey      string
	BaseURL     string // optional endpoint override (OpenAI-compatible or Ollama server)
	MaxTokens   int
	Temperature *float64
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-5"
	case "ollama":
		return "llama3.1"
	default:
		return "gpt-4o-mini"
	}
}

// NewAdapter builds the ProviderAdapter described by cfg.
func NewAdapter(cfg ProviderConfig) (ProviderAdapter, error) {
	if cfg.Provider == "" {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "provider is required"}}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}

	switch cfg.Backend {
	case BackendGollm:
		adapter, err := NewGollmAdapter(cfg)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case BackendLangchain, "":
		llm, err := newLangchainModel(cfg)
		if err != nil {
			return nil, err
		}
		return NewLangchainAdapter(cfg.Provider, llm, cfg.Model), nil
	default:
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("unknown backend %q", cfg.Backend),
		}}
	}
}

func newLangchainModel(cfg ProviderConfig) (llms.Model, error) {
	var (
		llm llms.Model
		err error
	)
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, anthropic.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		llm, err = anthropic.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err = ollama.New(opts...)
	default:
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("provider %q is not supported by the langchain backend", cfg.Provider),
		}}
	}
	if err != nil {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("create %s model", cfg.Provider),
			Cause:   err,
		}}
	}
	return llm, nil
}
