package semantic

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{1, 0, 0},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0},
			b:        []float32{-1, 0},
			expected: -1.0,
		},
		{
			name:     "similar vectors",
			a:        []float32{1, 1},
			b:        []float32{1, 0},
			expected: 0.7071067, // cos(45 degrees)
		},
		{
			name:     "empty vectors",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
		{
			name:     "different lengths",
			a:        []float32{1, 0},
			b:        []float32{1, 0, 0},
			expected: 0.0,
		},
		{
			name:     "zero vector",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 0, 0},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got-tt.expected)) > 0.0001 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func embeddedPapers(papers []arxiv.Paper) []arxiv.Paper {
	out := make([]arxiv.Paper, len(papers))
	for i, p := range papers {
		p.Embedding = hashVector(p.EmbeddingText())
		out[i] = p
	}
	return out
}

func TestMatrix_SearchFindsOwnAbstract(t *testing.T) {
	papers := embeddedPapers([]arxiv.Paper{
		{ArxivID: "2401.00003", Abstract: "graph neural networks for molecule property prediction"},
		{ArxivID: "2401.00001", Abstract: "a survey of reinforcement learning in robotics"},
		{ArxivID: "2401.00002", Abstract: "quantum error correction with surface codes"},
	})
	m, err := NewMatrix("hash-test", testDims, papers)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}

	results, err := m.Search(context.Background(), newHashEmbedder(10),
		"quantum error correction with surface codes", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Paper.ArxivID != "2401.00002" {
		t.Errorf("top result = %s, want 2401.00002", results[0].Paper.ArxivID)
	}
	if math.Abs(float64(results[0].Score-1.0)) > 1e-5 {
		t.Errorf("top score = %v, want 1.0", results[0].Score)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not sorted by score")
		}
	}
}

func TestMatrix_SearchTieBreaksByID(t *testing.T) {
	same := []float32{1, 0, 0}
	papers := []arxiv.Paper{
		{ArxivID: "c", Embedding: same},
		{ArxivID: "a", Embedding: same},
		{ArxivID: "b", Embedding: same},
	}
	m, err := NewMatrix("m", 3, papers)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	results, err := m.FindSimilar("b", 2)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(results) != 2 || results[0].Paper.ArxivID != "a" || results[1].Paper.ArxivID != "c" {
		t.Errorf("FindSimilar() order = %v", results)
	}
}

func TestMatrix_SearchLimitsK(t *testing.T) {
	m, err := NewMatrix("hash-test", testDims, embeddedPapers(makePapers(10)))
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	results, err := m.Search(context.Background(), newHashEmbedder(10), "shared topic", 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 4 {
		t.Errorf("got %d results, want 4", len(results))
	}
}

func TestMatrix_SearchValidation(t *testing.T) {
	m, err := NewMatrix("hash-test", testDims, embeddedPapers(makePapers(2)))
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	emb := newHashEmbedder(10)

	for _, k := range []int{0, -1, MaxK + 1} {
		if _, err := m.Search(context.Background(), emb, "query", k); !arxiv.IsValidation(err) {
			t.Errorf("Search(k=%d) error = %v, want validation", k, err)
		}
	}

	results, err := m.Search(context.Background(), emb, "   \t ", 10)
	if err != nil {
		t.Fatalf("blank Search: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("blank query returned %v, want an empty result set", results)
	}

	other := newHashEmbedder(10)
	other.model = "other"
	if _, err := m.Search(context.Background(), other, "query", 10); !arxiv.IsModel(err) {
		t.Errorf("Search() with another model error = %v, want model error", err)
	}
}

func TestMatrix_FindSimilarUnknownPaper(t *testing.T) {
	m, err := NewMatrix("m", 3, nil)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	if _, err := m.FindSimilar("nope", 5); !errors.Is(err, ErrPaperNotIndexed) {
		t.Errorf("FindSimilar() error = %v, want ErrPaperNotIndexed", err)
	}
}

func TestNewMatrix_RejectsDimensionMismatch(t *testing.T) {
	papers := []arxiv.Paper{{ArxivID: "a", Embedding: []float32{1, 2}}}
	if _, err := NewMatrix("m", 3, papers); !arxiv.IsModel(err) {
		t.Errorf("NewMatrix() error = %v, want model error", err)
	}
}

func TestMatrix_IDsSorted(t *testing.T) {
	papers := []arxiv.Paper{
		{ArxivID: "b", Embedding: []float32{1}},
		{ArxivID: "a", Embedding: []float32{1}},
	}
	m, err := NewMatrix("m", 1, papers)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	ids := m.IDs()
	if ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs() = %v", ids)
	}
}
