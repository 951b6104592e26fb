package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/martinemde/coderag/config"
	"github.com/martinemde/coderag/embedding"
	"github.com/martinemde/coderag/retrieval"
)

func newIndexCmd(flags *rootFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Chunk and embed the workspace into a retrieval snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Level(), flags.verbose)

			embedder, err := embedding.NewEmbedder(cmd.Context(), cfg.Embedding)
			if err != nil {
				return fmt.Errorf("embedder: %w", err)
			}

			path := output
			if path == "" {
				path = cfg.ResolvedIndexPath()
			}

			start := time.Now()
			chunks, err := retrieval.NewBuilder(cfg.BuilderConfig(), embedder, logger).Build(cmd.Context())
			if err != nil {
				return fmt.Errorf("build index: %w", err)
			}
			if err := retrieval.WriteSnapshot(path, chunks); err != nil {
				return err
			}
			logger.Info().
				Str("path", path).
				Int("chunks", len(chunks)).
				Dur("elapsed", time.Since(start)).
				Msg("index written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "snapshot path (defaults to index_path from the config)")
	return cmd
}
