package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/martinemde/coderag/embedding"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"
)

// BuilderConfig controls snapshot construction.
type BuilderConfig struct {
	Root         string
	Extensions   []string // e.g. ".go", ".ts"; empty means every text file
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int   // texts per embedding request
	Concurrency  int   // embedding requests in flight
	MaxFileBytes int64 // larger files are skipped
}

// DefaultBuilderConfig returns the builder defaults for root.
func DefaultBuilderConfig(root string) BuilderConfig {
	return BuilderConfig{
		Root:         root,
		ChunkSize:    1000,
		ChunkOverlap: 200,
		BatchSize:    32,
		Concurrency:  4,
		MaxFileBytes: 1 << 20,
	}
}

var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".coderag":     true,
}

// Builder walks a source tree and produces chunks for a snapshot.
type Builder struct {
	cfg      BuilderConfig
	embedder embedding.Embedder
	logger   zerolog.Logger
}

// NewBuilder creates a Builder. A nil embedder produces chunks without vectors.
func NewBuilder(cfg BuilderConfig, embedder embedding.Embedder, logger zerolog.Logger) *Builder {
	def := DefaultBuilderConfig(cfg.Root)
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = def.MaxFileBytes
	}
	return &Builder{cfg: cfg, embedder: embedder, logger: logger}
}

// Build walks the root, splits every eligible file and embeds the chunks.
func (b *Builder) Build(ctx context.Context) ([]Chunk, error) {
	chunks, err := b.collect(ctx)
	if err != nil {
		return nil, err
	}
	if b.embedder == nil {
		b.logger.Warn().Int("chunks", len(chunks)).Msg("no embedder configured, writing chunks without vectors")
		return chunks, nil
	}
	if err := b.embed(ctx, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (b *Builder) collect(ctx context.Context) ([]Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(b.cfg.ChunkSize),
		textsplitter.WithChunkOverlap(b.cfg.ChunkOverlap),
	)

	var chunks []Chunk
	err := filepath.WalkDir(b.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != b.cfg.Root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !b.wantExtension(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(b.cfg.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.Size() > b.cfg.MaxFileBytes {
			b.logger.Debug().Str("file", rel).Int64("bytes", info.Size()).Msg("skipping large file")
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		if isBinary(data) {
			b.logger.Debug().Str("file", rel).Msg("skipping binary file")
			return nil
		}

		parts, err := splitter.SplitText(string(data))
		if err != nil {
			return fmt.Errorf("split %s: %w", rel, err)
		}
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				continue
			}
			chunks = append(chunks, Chunk{Location: rel, Text: p})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", b.cfg.Root, err)
	}
	b.logger.Info().Int("chunks", len(chunks)).Str("root", b.cfg.Root).Msg("source tree chunked")
	return chunks, nil
}

// embed fills chunk vectors in place, one batch per goroutine, bounded by
// Concurrency.
func (b *Builder) embed(ctx context.Context, chunks []Chunk) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)

	for start := 0; start < len(chunks); start += b.cfg.BatchSize {
		end := min(start+b.cfg.BatchSize, len(chunks))
		batch := chunks[start:end]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}
			vecs, err := b.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(vecs))
			}
			for i := range batch {
				if len(vecs[i]) == 0 {
					return fmt.Errorf("embed chunk %d (%s): empty vector", start+i, batch[i].Location)
				}
				batch[i].Vector = vecs[i]
			}
			b.logger.Debug().Int("from", start).Int("to", end).Msg("batch embedded")
			return nil
		})
	}
	return g.Wait()
}

func (b *Builder) wantExtension(path string) bool {
	if len(b.cfg.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range b.cfg.Extensions {
		if strings.ToLower(want) == ext {
			return true
		}
	}
	return false
}

// isBinary reports whether data looks like a binary file: a NUL byte in the
// first 8000 bytes or invalid UTF-8.
func isBinary(data []byte) bool {
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	if bytes.IndexByte(head, 0) != -1 {
		return true
	}
	return !utf8.Valid(data)
}
