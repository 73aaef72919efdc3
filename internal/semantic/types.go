// Package semantic stores paper embeddings per partition, computes missing
// ones incrementally, and ranks an active corpus against a query.
package semantic

import (
	"time"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

// PartitionIndex holds the committed embeddings of one partition.
type PartitionIndex struct {
	// Version is the format version for compatibility checking.
	// Check against CurrentIndexVersion when loading.
	Version int `json:"version"`

	Partition  arxiv.PartitionKey `json:"partition"`
	ModelName  string             `json:"model_name"`
	Dimensions int                `json:"dimensions"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	PaperCount int                `json:"paper_count"`

	// Embeddings map paper IDs to their vector embeddings
	Embeddings map[string][]float32 `json:"-"`
}

// SearchResult is one ranked paper.
type SearchResult struct {
	Paper arxiv.Paper `json:"paper"`
	Score float32     `json:"score"`
}

// SyncStats reports what one Sync call did.
type SyncStats struct {
	Partition arxiv.PartitionKey `json:"partition"`
	Papers    int                `json:"papers"`
	Existing  int                `json:"existing"`
	Embedded  int                `json:"embedded"`
	Batches   int                `json:"batches"`
	Skipped   bool               `json:"skipped"`
	Healed    bool               `json:"healed,omitempty"`
	Duration  time.Duration      `json:"duration"`
}
