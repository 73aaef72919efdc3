package semantic

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
	"github.com/lmmx/arxiv-explorer/internal/diskcache"
)

// Errors returned by index operations.
var (
	ErrIndexNotFound      = errors.New("embedding file not found")
	ErrPaperNotIndexed    = errors.New("paper not in corpus")
	ErrUnsupportedVersion = errors.New("unsupported embedding file version")
)

const (
	// FileExt is the extension of per-partition embedding files.
	FileExt = ".gob"

	// CurrentIndexVersion is the format version for compatibility checking.
	// Increment this when making breaking changes to the file format.
	CurrentIndexVersion = 1
)

// NewPartitionIndex creates an empty index for one partition.
func NewPartitionIndex(key arxiv.PartitionKey, modelName string, dimensions int) *PartitionIndex {
	now := time.Now().UTC()
	return &PartitionIndex{
		Version:    CurrentIndexVersion,
		Partition:  key,
		ModelName:  modelName,
		Dimensions: dimensions,
		CreatedAt:  now,
		UpdatedAt:  now,
		Embeddings: make(map[string][]float32),
	}
}

// AddEmbedding adds a paper embedding to the index.
// The PaperCount field is automatically updated to reflect the current number of embeddings.
func (idx *PartitionIndex) AddEmbedding(paperID string, embedding []float32) error {
	if len(embedding) != idx.Dimensions {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), idx.Dimensions)
	}
	idx.Embeddings[paperID] = embedding
	idx.PaperCount = len(idx.Embeddings)
	return nil
}

// HasPaper checks if a paper is in the index.
func (idx *PartitionIndex) HasPaper(paperID string) bool {
	_, exists := idx.Embeddings[paperID]
	return exists
}

// Save atomically replaces the file at path with the index.
func (idx *PartitionIndex) Save(path string) error {
	err := diskcache.WriteFile(path, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(idx)
	})
	if err != nil {
		return fmt.Errorf("saving embeddings for %s: %w", idx.Partition, err)
	}
	return nil
}

// LoadIndex reads the index at path. A missing file is ErrIndexNotFound; a
// file that cannot be decoded is a CorruptCache error.
func LoadIndex(path string) (*PartitionIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIndexNotFound
		}
		return nil, fmt.Errorf("opening embedding file: %w", err)
	}
	defer f.Close()

	var idx PartitionIndex
	if err := gob.NewDecoder(f).Decode(&idx); err != nil {
		return nil, arxiv.Wrap(arxiv.KindCorruptCache, "semantic.load",
			fmt.Errorf("decoding %s: %w", path, err))
	}

	if idx.Version != CurrentIndexVersion {
		return nil, arxiv.Wrap(arxiv.KindCorruptCache, "semantic.load",
			fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, idx.Version, CurrentIndexVersion))
	}
	if idx.Embeddings == nil {
		idx.Embeddings = make(map[string][]float32)
	}
	return &idx, nil
}
