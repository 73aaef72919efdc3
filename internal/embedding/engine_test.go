package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

// recordingProvider returns vectors derived from text length and records
// every call.
type recordingProvider struct {
	dims    int
	calls   [][]string
	failAt  int // 1-based call that fails; 0 never fails
	badDims bool
}

func (p *recordingProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	p.calls = append(p.calls, texts)
	if p.failAt > 0 && len(p.calls) == p.failAt {
		return nil, errors.New("backend crashed")
	}
	out := make([]Embedding, len(texts))
	for i, t := range texts {
		n := p.dims
		if p.badDims {
			n++
		}
		v := make([]float32, n)
		v[0] = float32(len(t))
		out[i] = Embedding{Vector: v}
	}
	return out, nil
}

func (p *recordingProvider) ModelName() string { return "recording" }
func (p *recordingProvider) Dimensions() int   { return p.dims }

func TestEngine_EmbedBatchSplits(t *testing.T) {
	p := &recordingProvider{dims: 4}
	e := NewEngine(p, WithBatchSize(2))

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 5 {
		t.Fatalf("got %d vectors, want 5", len(vecs))
	}
	for i, v := range vecs {
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
	if len(p.calls) != 3 {
		t.Errorf("provider called %d times, want 3", len(p.calls))
	}
}

func TestEngine_EmbedBatchFailureIsModelError(t *testing.T) {
	p := &recordingProvider{dims: 4, failAt: 2}
	e := NewEngine(p, WithBatchSize(1))

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if !arxiv.IsModel(err) {
		t.Fatalf("EmbedBatch() error = %v, want model error", err)
	}
	if vecs != nil {
		t.Errorf("partial result returned: %v", vecs)
	}
}

func TestEngine_DimensionMismatch(t *testing.T) {
	e := NewEngine(&recordingProvider{dims: 4, badDims: true})
	if _, err := e.EmbedBatch(context.Background(), []string{"a"}); !arxiv.IsModel(err) {
		t.Errorf("EmbedBatch() error = %v, want model error", err)
	}
}

func TestEngine_EmbedQueryPrefix(t *testing.T) {
	p := &recordingProvider{dims: 4}
	e := NewEngine(p)

	if _, err := e.EmbedQuery(context.Background(), "  graph neural networks "); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	got := p.calls[0][0]
	if !strings.HasPrefix(got, QueryPrefix) || !strings.HasSuffix(got, "graph neural networks") {
		t.Errorf("query sent as %q", got)
	}

	e = NewEngine(p, WithQueryPrefix(""))
	if _, err := e.EmbedQuery(context.Background(), "plain"); err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if got := p.calls[1][0]; got != "plain" {
		t.Errorf("query sent as %q, want %q", got, "plain")
	}
}

func TestEngine_EmbedQueryEmpty(t *testing.T) {
	e := NewEngine(&recordingProvider{dims: 4})
	if _, err := e.EmbedQuery(context.Background(), "   "); !arxiv.IsValidation(err) {
		t.Errorf("EmbedQuery() error = %v, want validation error", err)
	}
}

func TestEngine_CanceledContext(t *testing.T) {
	p := &recordingProvider{dims: 4}
	e := NewEngine(p)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.EmbedBatch(ctx, []string{"a"}); !errors.Is(err, context.Canceled) {
		t.Errorf("EmbedBatch() error = %v, want context.Canceled", err)
	}
	if len(p.calls) != 0 {
		t.Errorf("provider called %d times after cancel", len(p.calls))
	}
}
