package retrieval

import (
	"fmt"
	"sort"
)

// Index is an immutable in-memory collection of chunks.
type Index struct {
	chunks     []Chunk
	hasVectors bool
	dim        int
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// EmptyIndex returns an index with no chunks.
func EmptyIndex() *Index {
	return &Index{}
}

// NewIndex validates chunks and builds an index over a private copy of them.
// Either every chunk has a vector of the same dimension or none has one.
func NewIndex(chunks []Chunk) (*Index, error) {
	idx := &Index{chunks: make([]Chunk, len(chunks))}
	copy(idx.chunks, chunks)

	withVectors := 0
	for i, c := range idx.chunks {
		if len(c.Vector) == 0 {
			continue
		}
		withVectors++
		if idx.dim == 0 {
			idx.dim = len(c.Vector)
		} else if len(c.Vector) != idx.dim {
			return nil, fmt.Errorf("%w: chunk %d (%s) has %d, expected %d",
				ErrDimensionMismatch, i, c.Location, len(c.Vector), idx.dim)
		}
	}
	if withVectors > 0 && withVectors != len(idx.chunks) {
		return nil, fmt.Errorf("%w: %d of %d chunks have vectors", ErrMixedVectors, withVectors, len(idx.chunks))
	}
	idx.hasVectors = withVectors > 0
	return idx, nil
}

// Len returns the number of chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// HasVectors reports whether the chunks carry embeddings.
func (idx *Index) HasVectors() bool { return idx.hasVectors }

// Dimension returns the vector length, or 0 without vectors.
func (idx *Index) Dimension() int { return idx.dim }

// Search returns up to k chunks ordered by descending similarity to vector.
// Ties keep snapshot order. An index without vectors returns nothing.
func (idx *Index) Search(vector []float32, k int) []ScoredChunk {
	if !idx.hasVectors || k <= 0 || len(vector) == 0 {
		return nil
	}
	scored := make([]ScoredChunk, len(idx.chunks))
	for i, c := range idx.chunks {
		scored[i] = ScoredChunk{Chunk: c, Score: CosineSimilarity(vector, c.Vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
