package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func locations(chunks []Chunk) map[string]bool {
	out := map[string]bool{}
	for _, c := range chunks {
		out[c.Location] = true
	}
	return out
}

func TestBuilderSkipsVendoredAndBinary(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":                 "package main\n\nfunc main() {}\n",
		"pkg/util/util.go":        "package util\n",
		".git/config":             "[core]\n",
		"node_modules/x/index.js": "module.exports = 1\n",
		"vendor/dep/dep.go":       "package dep\n",
		"logo.png":                "\x89PNG\x00\x00binary",
		"empty.txt":               "",
	})

	b := NewBuilder(BuilderConfig{Root: root}, nil, zerolog.Nop())
	chunks, err := b.Build(context.Background())
	require.NoError(t, err)

	locs := locations(chunks)
	assert.True(t, locs["main.go"])
	assert.True(t, locs["pkg/util/util.go"])
	assert.False(t, locs[".git/config"])
	assert.False(t, locs["node_modules/x/index.js"])
	assert.False(t, locs["vendor/dep/dep.go"])
	assert.False(t, locs["logo.png"])
	assert.False(t, locs["empty.txt"])
	for _, c := range chunks {
		assert.Nil(t, c.Vector)
	}
}

func TestBuilderExtensionFilter(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go":      "package a\n",
		"README.md": "# readme\n",
	})

	b := NewBuilder(BuilderConfig{Root: root, Extensions: []string{".go"}}, nil, zerolog.Nop())
	chunks, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a.go": true}, locations(chunks))
}

func TestBuilderSplitsAndEmbeds(t *testing.T) {
	long := strings.Repeat("line of source code\n", 40)
	root := writeTree(t, map[string]string{"big.go": long, "small.go": "package small\n"})

	emb := &fakeEmbedder{}
	b := NewBuilder(BuilderConfig{Root: root, ChunkSize: 100, ChunkOverlap: 10, BatchSize: 2, Concurrency: 2}, emb, zerolog.Nop())
	chunks, err := b.Build(context.Background())
	require.NoError(t, err)

	require.Greater(t, len(chunks), 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 100)
		assert.Len(t, c.Vector, 2)
	}
	assert.Equal(t, (len(chunks)+1)/2, emb.batches)

	idx, err := NewIndex(chunks)
	require.NoError(t, err)
	assert.True(t, idx.HasVectors())
}

func TestBuilderEmbeddingFailure(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n"})
	cause := errors.New("quota exhausted")

	b := NewBuilder(BuilderConfig{Root: root}, &fakeEmbedder{err: cause}, zerolog.Nop())
	_, err := b.Build(context.Background())
	require.ErrorIs(t, err, cause)
}

// sparseEmbedder returns no vector for texts containing skip.
type sparseEmbedder struct {
	fakeEmbedder
	skip string
}

func (s *sparseEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if !strings.Contains(text, s.skip) {
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}

func TestBuilderRejectsEmptyVectors(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n", "b.go": "package b\n"})

	b := NewBuilder(BuilderConfig{Root: root}, &sparseEmbedder{skip: "package b"}, zerolog.Nop())
	_, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty vector")
	assert.Contains(t, err.Error(), "b.go")
}

func TestIsBinary(t *testing.T) {
	assert.True(t, isBinary([]byte{'a', 0, 'b'}))
	assert.True(t, isBinary([]byte{0xff, 0xfe, 0xfd}))
	assert.False(t, isBinary([]byte("plain text ✓")))
}
