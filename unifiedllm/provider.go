package unifiedllm

import "context"

// ProviderAdapter is implemented by each model backend.
type ProviderAdapter interface {
	// Name is the provider identifier, such as "openai" or "ollama".
	Name() string

	// Complete returns either a final text answer or one or more tool calls.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}

// ToolChoiceSupporter is implemented by adapters that restrict which tool
// choice modes they accept. Client rejects unsupported modes before calling
// the adapter.
type ToolChoiceSupporter interface {
	SupportsToolChoice(mode string) bool
}
