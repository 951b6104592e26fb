package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/martinemde/coderag/embedding"
	"github.com/rs/zerolog"
)

// DefaultTopK is the number of chunks placed into context per query.
const DefaultTopK = 5

// ContextSeparator separates formatted chunks in a context blob.
const ContextSeparator = "\n\n---\n\n"

// Retriever turns a query into a context blob.
type Retriever struct {
	index    *Index
	embedder embedding.Embedder
	topK     int
	logger   zerolog.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithTopK sets the number of chunks retrieved per query.
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithLogger sets the logger used for degraded retrieval warnings.
func WithLogger(logger zerolog.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// NewRetriever creates a Retriever. index may be nil and embedder may be nil;
// both degrade retrieval to empty context.
func NewRetriever(index *Index, embedder embedding.Embedder, opts ...RetrieverOption) *Retriever {
	if index == nil {
		index = EmptyIndex()
	}
	r := &Retriever{
		index:    index,
		embedder: embedder,
		topK:     DefaultTopK,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Index returns the underlying index.
func (r *Retriever) Index() *Index { return r.index }

// Search embeds query and returns the top-k hits.
func (r *Retriever) Search(ctx context.Context, query string) ([]ScoredChunk, error) {
	if r.index.Len() == 0 || !r.index.HasVectors() || r.embedder == nil {
		return nil, nil
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != r.index.Dimension() {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vec), r.index.Dimension())
	}
	return r.index.Search(vec, r.topK), nil
}

// Retrieve returns the formatted context for query, or "" when nothing can be
// retrieved. Errors are logged, never returned.
func (r *Retriever) Retrieve(ctx context.Context, query string) string {
	hits, err := r.Search(ctx, query)
	if err != nil {
		r.logger.Warn().Err(err).Msg("retrieval failed, answering without context")
		return ""
	}
	r.logger.Debug().Int("hits", len(hits)).Msg("context retrieved")
	return FormatContext(hits)
}

// FormatContext renders hits as "File: <location>\n<text>" blocks joined by
// ContextSeparator.
func FormatContext(hits []ScoredChunk) string {
	if len(hits) == 0 {
		return ""
	}
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = "File: " + h.Chunk.Location + "\n" + h.Chunk.Text
	}
	return strings.Join(blocks, ContextSeparator)
}
