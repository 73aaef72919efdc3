package semantic

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

const (
	// MinK and MaxK bound the number of search results.
	MinK = 1
	MaxK = 500

	// DefaultK is the result count when none is given.
	DefaultK = 200
)

// QueryEmbedder embeds a search query with the corpus's model.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	ModelName() string
	Dimensions() int
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denominator := math.Sqrt(normA) * math.Sqrt(normB)
	if denominator == 0 {
		return 0
	}

	return float32(dot / denominator)
}

// Matrix is the in-memory embedding matrix of one loaded corpus. Papers are
// held in arxiv_id order.
type Matrix struct {
	modelName  string
	dimensions int
	papers     []arxiv.Paper
	byID       map[string]int
}

// NewMatrix builds a matrix over papers, which must all carry embeddings of
// the given dimension.
func NewMatrix(modelName string, dimensions int, papers []arxiv.Paper) (*Matrix, error) {
	sorted := make([]arxiv.Paper, len(papers))
	copy(sorted, papers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ArxivID < sorted[j].ArxivID })

	m := &Matrix{
		modelName:  modelName,
		dimensions: dimensions,
		papers:     sorted,
		byID:       make(map[string]int, len(sorted)),
	}
	for i, p := range sorted {
		if len(p.Embedding) != dimensions {
			return nil, arxiv.Errorf(arxiv.KindModel, "semantic.matrix",
				"paper %s has %d dimensions, want %d", p.ArxivID, len(p.Embedding), dimensions)
		}
		m.byID[p.ArxivID] = i
	}
	return m, nil
}

// Len returns the number of papers.
func (m *Matrix) Len() int { return len(m.papers) }

// ModelName is the model the embeddings came from.
func (m *Matrix) ModelName() string { return m.modelName }

// Papers returns the papers in arxiv_id order.
func (m *Matrix) Papers() []arxiv.Paper { return m.papers }

// IDs returns the arxiv_ids in order.
func (m *Matrix) IDs() []string {
	ids := make([]string, len(m.papers))
	for i, p := range m.papers {
		ids[i] = p.ArxivID
	}
	return ids
}

// Vectors returns the embedding rows in paper order.
func (m *Matrix) Vectors() [][]float32 {
	out := make([][]float32, len(m.papers))
	for i, p := range m.papers {
		out[i] = p.Embedding
	}
	return out
}

// ValidateK rejects result counts outside [MinK, MaxK].
func ValidateK(k int) error {
	if k < MinK || k > MaxK {
		return arxiv.Errorf(arxiv.KindValidation, "search", "k must be between %d and %d, got %d", MinK, MaxK, k)
	}
	return nil
}

// Search ranks the corpus by cosine similarity to query. A blank query
// returns no results. Ties are broken by ascending arxiv_id.
func (m *Matrix) Search(ctx context.Context, embedder QueryEmbedder, query string, k int) ([]SearchResult, error) {
	if err := ValidateK(k); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" || len(m.papers) == 0 {
		return []SearchResult{}, nil
	}
	if embedder.ModelName() != m.modelName || embedder.Dimensions() != m.dimensions {
		return nil, arxiv.Errorf(arxiv.KindModel, "search",
			"query model %s does not match corpus model %s", embedder.ModelName(), m.modelName)
	}

	q, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(q) != m.dimensions {
		return nil, arxiv.Errorf(arxiv.KindModel, "search",
			"query embedding has %d dimensions, want %d", len(q), m.dimensions)
	}
	return m.rank(q, k, ""), nil
}

// FindSimilar ranks the corpus against one of its own papers, excluding it.
func (m *Matrix) FindSimilar(paperID string, k int) ([]SearchResult, error) {
	if err := ValidateK(k); err != nil {
		return nil, err
	}
	i, ok := m.byID[paperID]
	if !ok {
		return nil, ErrPaperNotIndexed
	}
	return m.rank(m.papers[i].Embedding, k, paperID), nil
}

func (m *Matrix) rank(q []float32, k int, exclude string) []SearchResult {
	results := make([]SearchResult, 0, len(m.papers))
	for _, p := range m.papers {
		if p.ArxivID == exclude {
			continue
		}
		results = append(results, SearchResult{Paper: p, Score: CosineSimilarity(q, p.Embedding)})
	}

	// Sort by similarity descending
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Paper.ArxivID < results[j].Paper.ArxivID
	})

	// Apply limit
	if len(results) > k {
		results = results[:k]
	}
	return results
}
