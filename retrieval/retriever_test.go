package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps known texts to vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error

	mu      sync.Mutex
	batches int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.batches++
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = f.Embed(ctx, text)
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

func testIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex([]Chunk{
		{Location: "utils.ts", Text: "export function helper() {}", Vector: []float32{1, 0}},
		{Location: "main.ts", Text: "helper()", Vector: []float32{0.6, 0.8}},
	})
	require.NoError(t, err)
	return idx
}

func TestRetrieveFormatsContext(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"where is helper": {1, 0}}}
	r := NewRetriever(testIndex(t), emb)

	got := r.Retrieve(context.Background(), "where is helper")
	want := "File: utils.ts\nexport function helper() {}" + ContextSeparator + "File: main.ts\nhelper()"
	assert.Equal(t, want, got)
}

func TestRetrieveHonorsTopK(t *testing.T) {
	r := NewRetriever(testIndex(t), &fakeEmbedder{}, WithTopK(1))
	got := r.Retrieve(context.Background(), "q")
	assert.Equal(t, 1, strings.Count(got, "File: "))
}

func TestRetrieveDegradesToEmpty(t *testing.T) {
	noVectors, err := NewIndex([]Chunk{{Location: "a.go", Text: "a"}})
	require.NoError(t, err)

	tests := []struct {
		name     string
		index    *Index
		embedder *fakeEmbedder
	}{
		{"empty index", EmptyIndex(), &fakeEmbedder{}},
		{"nil index", nil, &fakeEmbedder{}},
		{"no vectors", noVectors, &fakeEmbedder{}},
		{"embedding fails", testIndex(t), &fakeEmbedder{err: errors.New("no credentials")}},
		{"dimension mismatch", testIndex(t), &fakeEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetriever(tt.index, tt.embedder)
			assert.Equal(t, "", r.Retrieve(context.Background(), "q"))
		})
	}
}

func TestRetrieveWithoutEmbedder(t *testing.T) {
	r := NewRetriever(testIndex(t), nil)
	assert.Equal(t, "", r.Retrieve(context.Background(), "q"))
}

func TestFormatContextEmpty(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))
}
