package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/martinemde/coderag/agentloop"
	"github.com/martinemde/coderag/config"
	"github.com/martinemde/coderag/embedding"
	"github.com/martinemde/coderag/unifiedllm"
)

func newAskCmd(flags *rootFlags) *cobra.Command {
	var historyPath string
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Run one agent turn and stream its events as NDJSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAsk(ctx, cmd, flags, historyPath, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&historyPath, "history", "", "JSON file holding the conversation to continue; updated after the turn")
	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, flags *rootFlags, historyPath, query string) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Level(), flags.verbose)

	client, err := newModelClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	embedder, err := embedding.NewEmbedder(ctx, cfg.Embedding)
	if err != nil {
		logger.Warn().Err(err).Msg("embedder unavailable, answering without retrieved context")
		embedder = nil
	}

	opts := cfg.AgentOptions()
	opts.Model = client
	opts.Embedder = embedder
	opts.Logger = &logger
	agent, err := agentloop.NewAgent(opts)
	if err != nil {
		return err
	}

	history, err := loadHistory(historyPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream := agent.Run(ctx, query, history)
	if err := agentloop.WriteNDJSON(cmd.OutOrStdout(), stream.Events()); err != nil {
		cancel()
		_ = stream.Err()
		return err
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("turn abandoned: %w", err)
	}
	return saveHistory(historyPath, stream.History())
}

// newModelClient wires the configured adapter into a client with logging and
// retry middleware.
func newModelClient(cfg *config.Config, logger zerolog.Logger) (*unifiedllm.Client, error) {
	adapter, err := unifiedllm.NewAdapter(cfg.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	policy := cfg.RetryPolicy()
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("retrying completion")
	}
	return unifiedllm.NewClient(
		unifiedllm.WithProvider(cfg.Model.Provider, adapter),
		unifiedllm.WithDefaultProvider(cfg.Model.Provider),
		unifiedllm.WithDefaultModel(cfg.ModelName()),
		unifiedllm.WithMiddleware(
			unifiedllm.LoggingMiddleware(logger),
			unifiedllm.RetryMiddleware(policy),
		),
	), nil
}

func loadHistory(path string) ([]agentloop.Turn, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var turns []agentloop.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	return turns, nil
}

func saveHistory(path string, turns []agentloop.Turn) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
