package topics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

func TestTokenizer_Tokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"folds case and drops short words", "The QUANTUM qubits of Light", []string{"quantum", "qubits", "light"}},
		{"splits on punctuation", "quantum-entanglement, photons!", []string{"quantum", "entanglement", "photons"}},
		{"drops numbers and stopwords", "we propose 2024 new lattice models", []string{"lattice", "models"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTokenizer().Tokens(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Tokens(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestBuildTFIDF(t *testing.T) {
	docs := [][]string{
		{"quantum", "quantum", "qubit"},
		{"protein", "qubit"},
	}
	v, vocab := buildTFIDF(docs, 0)
	if !slices.Equal(vocab.terms, []string{"protein", "quantum", "qubit"}) {
		t.Fatalf("terms = %v", vocab.terms)
	}
	for i := range 2 {
		var norm float64
		for _, x := range v.RawRowView(i) {
			norm += x * x
		}
		if math.Abs(norm-1) > 1e-9 {
			t.Errorf("row %d norm² = %v, want 1", i, norm)
		}
	}
	// Shared term is down-weighted against a term unique to the document.
	if v.At(1, vocab.index["qubit"]) >= v.At(1, vocab.index["protein"]) {
		t.Error("shared term should weigh less than unique term")
	}
	if v.At(0, vocab.index["protein"]) != 0 {
		t.Error("absent term should be zero")
	}
}

func TestBuildTFIDF_MaxFeatures(t *testing.T) {
	docs := [][]string{{"alpha", "beta", "gamma"}, {"alpha", "beta"}, {"alpha"}}
	_, vocab := buildTFIDF(docs, 2)
	if !slices.Equal(vocab.terms, []string{"alpha", "beta"}) {
		t.Errorf("terms = %v, want most frequent two", vocab.terms)
	}
}

func twoThemeCorpus() []Document {
	physics := "quantum qubit entanglement photon superconducting circuit"
	biology := "protein folding enzyme molecular binding cellular"
	var docs []Document
	for i := range 4 {
		docs = append(docs, Document{ID: fmt.Sprintf("p%d", i), Text: physics + fmt.Sprintf(" decoherence%d", i%2)})
	}
	for i := range 4 {
		docs = append(docs, Document{ID: fmt.Sprintf("b%d", i), Text: biology + fmt.Sprintf(" kinase%d", i%2)})
	}
	return docs
}

func TestExtract_SeparatesThemes(t *testing.T) {
	docs := twoThemeCorpus()
	res, err := Extract(context.Background(), docs, 2)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.N != 2 || res.Capped {
		t.Fatalf("N = %d capped = %v, want 2 uncapped", res.N, res.Capped)
	}
	physics := res.Assignments[0].Dominant
	for i, a := range res.Assignments {
		want := physics
		if i >= 4 {
			want = 1 - physics
		}
		if a.Dominant != want {
			t.Errorf("doc %s dominant = %d, want %d", a.ID, a.Dominant, want)
		}
		var sum float64
		for _, w := range a.Weights {
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("doc %s weights sum to %v", a.ID, sum)
		}
	}
	for _, topic := range res.Topics {
		if topic.DocCount != 4 {
			t.Errorf("topic %d doc_count = %d, want 4", topic.ID, topic.DocCount)
		}
		if len(topic.Terms) == 0 || len(topic.Terms) > DefaultTopTerms {
			t.Errorf("topic %d has %d terms", topic.ID, len(topic.Terms))
		}
	}
	weight := make(map[string]float64)
	for _, tw := range res.Topics[physics].Terms {
		weight[tw.Term] = tw.Weight
	}
	if weight["quantum"] <= weight["protein"] {
		t.Errorf("physics topic terms = %v", res.Topics[physics].Terms)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	docs := twoThemeCorpus()
	a, err := Extract(context.Background(), docs, 3)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Extract(context.Background(), docs, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Assignments {
		if !slices.Equal(a.Assignments[i].Weights, b.Assignments[i].Weights) {
			t.Fatalf("assignment %d differs between runs", i)
		}
	}
}

func TestExtract_CapsAtDocumentCount(t *testing.T) {
	var docs []Document
	for i := range 10 {
		docs = append(docs, Document{
			ID:   fmt.Sprintf("d%d", i),
			Text: fmt.Sprintf("topic%c shared%c words%c appear", 'a'+i/2, 'a'+i/2, 'a'+i/2),
		})
	}
	res, err := Extract(context.Background(), docs, 50)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Capped || res.N > 10 || res.Requested != 50 || res.CapReason == "" {
		t.Fatalf("result = requested %d N %d capped %v reason %q", res.Requested, res.N, res.Capped, res.CapReason)
	}
	if len(res.Topics) != res.N {
		t.Fatalf("len(Topics) = %d, N = %d", len(res.Topics), res.N)
	}
	for _, topic := range res.Topics {
		if len(topic.Terms) == 0 {
			t.Errorf("topic %d has no terms", topic.ID)
		}
	}
	total := 0
	for _, topic := range res.Topics {
		total += topic.DocCount
	}
	if total != len(docs) {
		t.Errorf("doc counts sum to %d, want %d", total, len(docs))
	}
	for _, a := range res.Assignments {
		if len(a.Weights) != res.N {
			t.Errorf("%s has %d weights, want %d", a.ID, len(a.Weights), res.N)
		}
	}
}

func TestExtract_Validation(t *testing.T) {
	docs := twoThemeCorpus()
	tests := []struct {
		name string
		docs []Document
		n    int
	}{
		{"too few topics", docs, 1},
		{"too many topics", docs, 51},
		{"single document", docs[:1], 2},
		{"no usable terms", []Document{{ID: "a", Text: "the of and"}, {ID: "b", Text: "42"}}, 2},
		{"one term", []Document{{ID: "a", Text: "lattice"}, {ID: "b", Text: "lattice"}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(context.Background(), tt.docs, tt.n)
			if !arxiv.IsValidation(err) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestExtract_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Extract(ctx, twoThemeCorpus(), 2)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDominant_TieBreaksLow(t *testing.T) {
	tests := []struct {
		weights []float64
		want    int
	}{
		{[]float64{0.2, 0.8}, 1},
		{[]float64{0.5, 0.5}, 0},
		{[]float64{0.1, 0.45, 0.45}, 1},
		{[]float64{0, 0, 0}, 0},
	}
	for _, tt := range tests {
		if got := dominant(tt.weights); got != tt.want {
			t.Errorf("dominant(%v) = %d, want %d", tt.weights, got, tt.want)
		}
	}
}

func TestSuggestTopics(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 3}, {250, 3}, {500, 5}, {1499, 14}, {1500, 15}, {100000, 15},
	}
	for _, tt := range tests {
		if got := SuggestTopics(tt.n); got != tt.want {
			t.Errorf("SuggestTopics(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestFromPapers(t *testing.T) {
	docs := FromPapers([]arxiv.Paper{{ArxivID: "2401.00001", Title: "Lattice", Abstract: "Gauge fields"}})
	if docs[0].ID != "2401.00001" || docs[0].Text != "Lattice Gauge fields" {
		t.Errorf("FromPapers = %+v", docs[0])
	}
}
