package retrieval

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// ErrMixedVectors is returned when some chunks carry vectors and others do not.
	ErrMixedVectors = errors.New("retrieval: snapshot mixes chunks with and without vectors")
	// ErrDimensionMismatch is returned when chunk vectors differ in length.
	ErrDimensionMismatch = errors.New("retrieval: snapshot vectors differ in dimension")
)

// Chunk is one unit of retrievable content.
type Chunk struct {
	Location string    `json:"location"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"vector,omitempty"`
}

// LoadIndex reads a JSON snapshot and builds an Index from it.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	var chunks []Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	idx, err := NewIndex(chunks)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return idx, nil
}

// LoadIndexOrEmpty loads the snapshot at path, falling back to an empty index
// when the file is missing or malformed. An empty path yields an empty index.
func LoadIndexOrEmpty(path string, logger zerolog.Logger) *Index {
	if path == "" {
		return EmptyIndex()
	}
	idx, err := LoadIndex(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("path", path).Msg("index snapshot not found, answering without context")
		} else {
			logger.Warn().Err(err).Str("path", path).Msg("index snapshot unusable, answering without context")
		}
		return EmptyIndex()
	}
	logger.Debug().
		Str("path", path).
		Int("chunks", idx.Len()).
		Bool("vectors", idx.HasVectors()).
		Msg("index loaded")
	return idx
}

// WriteSnapshot writes chunks as a JSON snapshot at path. The file is written
// to a temporary sibling first and renamed into place.
func WriteSnapshot(path string, chunks []Chunk) error {
	if chunks == nil {
		chunks = []Chunk{}
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}
