package projection

import (
	"testing"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

func TestSelectionKey_OrderIndependent(t *testing.T) {
	a := arxiv.NewPartitionKey("cs.AI", 2024, 1)
	b := arxiv.NewPartitionKey("cs.LG", 2024, 2)

	k1 := SelectionKey(arxiv.NewSelection(a, b), "m", "umap/1", DefaultParams())
	k2 := SelectionKey(arxiv.NewSelection(b, a), "m", "umap/1", DefaultParams())
	k3 := SelectionKey(arxiv.NewSelection(b, a, b), "m", "umap/1", DefaultParams())
	if k1 != k2 || k1 != k3 {
		t.Errorf("keys differ for the same selection: %s %s %s", k1, k2, k3)
	}
	if len(k1) != 32 {
		t.Errorf("key length = %d, want 32 hex chars", len(k1))
	}
}

func TestSelectionKey_SensitiveToInputs(t *testing.T) {
	sel := arxiv.NewSelection(arxiv.NewPartitionKey("cs.AI", 2024, 1))
	base := SelectionKey(sel, "m", "umap/1", DefaultParams())

	p := DefaultParams()
	p.NNeighbors = 30
	seed := DefaultParams()
	seed.Seed = 7
	metric := DefaultParams()
	metric.Metric = MetricEuclidean
	dist := DefaultParams()
	dist.MinDist = 0.25

	others := map[string]string{
		"model":       SelectionKey(sel, "other-model", "umap/1", DefaultParams()),
		"projector":   SelectionKey(sel, "m", "umap/2", DefaultParams()),
		"n_neighbors": SelectionKey(sel, "m", "umap/1", p),
		"seed":        SelectionKey(sel, "m", "umap/1", seed),
		"metric":      SelectionKey(sel, "m", "umap/1", metric),
		"min_dist":    SelectionKey(sel, "m", "umap/1", dist),
		"selection": SelectionKey(arxiv.NewSelection(arxiv.NewPartitionKey("cs.AI", 2024, 2)),
			"m", "umap/1", DefaultParams()),
	}
	for name, k := range others {
		if k == base {
			t.Errorf("changing %s did not change the key", name)
		}
	}
}

func TestCorpusDigest(t *testing.T) {
	d1 := CorpusDigest([]string{"b", "a", "c"})
	d2 := CorpusDigest([]string{"c", "b", "a"})
	d3 := CorpusDigest([]string{"a", "b", "c", "d"})
	if d1 != d2 {
		t.Error("digest depends on order")
	}
	if d1 == d3 {
		t.Error("one extra paper did not change the digest")
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults", func(p *Params) {}, false},
		{"euclidean", func(p *Params) { p.Metric = MetricEuclidean }, false},
		{"one neighbor", func(p *Params) { p.NNeighbors = 1 }, true},
		{"negative min_dist", func(p *Params) { p.MinDist = -0.1 }, true},
		{"unknown metric", func(p *Params) { p.Metric = "manhattan" }, true},
		{"zero epochs", func(p *Params) { p.Epochs = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !arxiv.IsValidation(err) {
				t.Errorf("Validate() error kind = %s, want validation", arxiv.KindOf(err))
			}
		})
	}
}
