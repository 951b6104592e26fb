package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLangchain struct {
	query [][]float32
	docs  [][]float32
	err   error
	seen  []string
}

func (f *fakeLangchain) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.seen = append(f.seen, texts...)
	return f.docs, f.err
}

func (f *fakeLangchain) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.seen = append(f.seen, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.query[0], nil
}

func TestNewEmbedderNone(t *testing.T) {
	for _, provider := range []string{"", "none"} {
		e, err := NewEmbedder(context.Background(), Config{Provider: provider})
		require.NoError(t, err)
		assert.Nil(t, e)
	}
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Config{Provider: "word2vec"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word2vec")
}

func TestNewEmbedderGeminiRequiresKey(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Config{Provider: "gemini"})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewEmbedderOllama(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Config{Provider: "ollama", BaseURL: "http://127.0.0.1:11434"})
	require.NoError(t, err)
	assert.Equal(t, "ollama:nomic-embed-text", e.Name())
}

func TestLangchainEmbedderEmbed(t *testing.T) {
	fake := &fakeLangchain{query: [][]float32{{0.1, 0.2}}}
	e := WrapLangchain("openai:test", fake)

	vec, err := e.Embed(context.Background(), "where is main")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, []string{"where is main"}, fake.seen)
	assert.Equal(t, "openai:test", e.Name())
}

func TestLangchainEmbedderEmptyVector(t *testing.T) {
	e := WrapLangchain("openai:test", &fakeLangchain{query: [][]float32{{}}})
	_, err := e.Embed(context.Background(), "q")
	require.Error(t, err)
}

func TestLangchainEmbedderBatch(t *testing.T) {
	fake := &fakeLangchain{docs: [][]float32{{1, 0}, {0, 1}}}
	e := WrapLangchain("openai:test", fake)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	empty, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestLangchainEmbedderBatchCountMismatch(t *testing.T) {
	e := WrapLangchain("openai:test", &fakeLangchain{docs: [][]float32{{1, 0}}})
	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

func TestLangchainEmbedderWrapsErrors(t *testing.T) {
	cause := errors.New("boom")
	e := WrapLangchain("openai:test", &fakeLangchain{err: cause})
	_, err := e.Embed(context.Background(), "q")
	require.ErrorIs(t, err, cause)
}

func TestDefaultModel(t *testing.T) {
	assert.Equal(t, "text-embedding-3-small", DefaultModel("openai"))
	assert.Equal(t, "nomic-embed-text", DefaultModel("ollama"))
	assert.Equal(t, "gemini-embedding-001", DefaultModel("gemini"))
}
