// Package config loads the coderag YAML configuration and maps it onto the
// option types of the model, embedding, retrieval and agent packages.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/martinemde/coderag/agentloop"
	"github.com/martinemde/coderag/embedding"
	"github.com/martinemde/coderag/retrieval"
	"github.com/martinemde/coderag/unifiedllm"
)

// DefaultIndexPath is the snapshot location relative to the workspace.
const DefaultIndexPath = ".coderag/index.json"

// Config is the root of the configuration file.
type Config struct {
	Workspace    string           `yaml:"workspace"`
	IndexPath    string           `yaml:"index_path"`
	Instructions string           `yaml:"instructions"`
	LogLevel     string           `yaml:"log_level"`
	Model        ModelConfig      `yaml:"model"`
	Embedding    embedding.Config `yaml:"embedding"`
	Agent        AgentConfig      `yaml:"agent"`
	Index        IndexConfig      `yaml:"index"`
}

// ModelConfig selects the language model backend.
type ModelConfig struct {
	Backend     string   `yaml:"backend"`
	Provider    string   `yaml:"provider"`
	Name        string   `yaml:"name"`
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	MaxRetries  int      `yaml:"max_retries"`
}

// AgentConfig bounds the agent loop.
type AgentConfig struct {
	MaxTurns         int            `yaml:"max_turns"`
	TopK             int            `yaml:"top_k"`
	ToolOutputLimits map[string]int `yaml:"tool_output_limits"`
	ToolLineLimits   map[string]int `yaml:"tool_line_limits"`
}

// IndexConfig controls the index builder.
type IndexConfig struct {
	Extensions   []string `yaml:"extensions"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	BatchSize    int      `yaml:"batch_size"`
	Concurrency  int      `yaml:"concurrency"`
	MaxFileBytes int64    `yaml:"max_file_bytes"`
}

var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	b := retrieval.DefaultBuilderConfig(".")
	return &Config{
		Workspace: ".",
		IndexPath: DefaultIndexPath,
		LogLevel:  "info",
		Model: ModelConfig{
			Backend:  unifiedllm.BackendLangchain,
			Provider: "openai",
		},
		Embedding: embedding.Config{Provider: "openai"},
		Agent: AgentConfig{
			MaxTurns: agentloop.DefaultMaxTurns,
			TopK:     retrieval.DefaultTopK,
		},
		Index: IndexConfig{
			ChunkSize:    b.ChunkSize,
			ChunkOverlap: b.ChunkOverlap,
			BatchSize:    b.BatchSize,
			Concurrency:  b.Concurrency,
			MaxFileBytes: b.MaxFileBytes,
		},
	}
}

// Load reads the YAML file at path over the defaults, fills API keys from the
// environment and validates the result. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.Model.APIKey == "" {
		if name, ok := apiKeyEnv[c.Model.Provider]; ok {
			c.Model.APIKey = os.Getenv(name)
		}
	}
	if c.Embedding.APIKey == "" {
		if name, ok := apiKeyEnv[c.Embedding.Provider]; ok {
			c.Embedding.APIKey = os.Getenv(name)
		}
	}
}

// Validate checks backend and provider names and numeric bounds.
func (c *Config) Validate() error {
	var errs []error
	switch c.Model.Backend {
	case "", unifiedllm.BackendLangchain, unifiedllm.BackendGollm:
	default:
		errs = append(errs, fmt.Errorf("model.backend: unknown backend %q", c.Model.Backend))
	}
	switch c.Model.Provider {
	case "openai", "anthropic", "ollama":
	case "":
		errs = append(errs, errors.New("model.provider is required"))
	default:
		errs = append(errs, fmt.Errorf("model.provider: unsupported provider %q", c.Model.Provider))
	}
	switch c.Embedding.Provider {
	case "", "none", "openai", "ollama", "gemini":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider: unsupported provider %q", c.Embedding.Provider))
	}
	if c.Model.MaxRetries < 0 {
		errs = append(errs, errors.New("model.max_retries must not be negative"))
	}
	if t := c.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("model.temperature %.2f out of range [0, 2]", *t))
	}
	if c.Agent.MaxTurns < 1 {
		errs = append(errs, errors.New("agent.max_turns must be at least 1"))
	}
	if c.Agent.TopK < 1 {
		errs = append(errs, errors.New("agent.top_k must be at least 1"))
	}
	if c.Index.ChunkSize < 1 {
		errs = append(errs, errors.New("index.chunk_size must be at least 1"))
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		errs = append(errs, errors.New("index.chunk_overlap must be in [0, chunk_size)"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// ResolvedIndexPath returns IndexPath, joined onto the workspace when relative.
func (c *Config) ResolvedIndexPath() string {
	if c.IndexPath == "" || filepath.IsAbs(c.IndexPath) {
		return c.IndexPath
	}
	return filepath.Join(c.Workspace, c.IndexPath)
}

// ProviderConfig maps the model section onto the adapter factory input.
func (c *Config) ProviderConfig() unifiedllm.ProviderConfig {
	return unifiedllm.ProviderConfig{
		Backend:     c.Model.Backend,
		Provider:    c.Model.Provider,
		Model:       c.Model.Name,
		APIKey:      c.Model.APIKey,
		BaseURL:     c.Model.BaseURL,
		MaxTokens:   c.Model.MaxTokens,
		Temperature: c.Model.Temperature,
	}
}

// ModelName returns the configured model or the provider default.
func (c *Config) ModelName() string {
	if c.Model.Name != "" {
		return c.Model.Name
	}
	return unifiedllm.DefaultModel(c.Model.Provider)
}

// RetryPolicy returns the retry policy for the model client. MaxRetries 0
// disables retries.
func (c *Config) RetryPolicy() unifiedllm.RetryPolicy {
	p := unifiedllm.DefaultRetryPolicy()
	p.MaxRetries = c.Model.MaxRetries
	return p
}

// BuilderConfig maps the index section onto the snapshot builder input.
func (c *Config) BuilderConfig() retrieval.BuilderConfig {
	return retrieval.BuilderConfig{
		Root:         c.Workspace,
		Extensions:   c.Index.Extensions,
		ChunkSize:    c.Index.ChunkSize,
		ChunkOverlap: c.Index.ChunkOverlap,
		BatchSize:    c.Index.BatchSize,
		Concurrency:  c.Index.Concurrency,
		MaxFileBytes: c.Index.MaxFileBytes,
	}
}

// AgentOptions returns agent options for everything but the model, embedder
// and logger, which the caller constructs.
func (c *Config) AgentOptions() agentloop.Options {
	return agentloop.Options{
		ModelName:        c.ModelName(),
		Provider:         c.Model.Provider,
		IndexPath:        c.ResolvedIndexPath(),
		TopK:             c.Agent.TopK,
		MaxTurns:         c.Agent.MaxTurns,
		WorkspaceRoot:    c.Workspace,
		Instructions:     c.Instructions,
		ToolOutputLimits: c.Agent.ToolOutputLimits,
		ToolLineLimits:   c.Agent.ToolLineLimits,
	}
}
