// Package projection reduces a corpus's embeddings to 2D coordinates and
// caches the result per exact selection.
package projection

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

// Metrics the default projector supports.
const (
	MetricCosine    = "cosine"
	MetricEuclidean = "euclidean"
)

// MinSamples is the smallest corpus that can be projected.
const MinSamples = 2

// Params are the projection hyperparameters. They are part of every cache
// key.
type Params struct {
	NNeighbors int     `json:"n_neighbors" yaml:"n_neighbors"`
	MinDist    float64 `json:"min_dist" yaml:"min_dist"`
	Metric     string  `json:"metric" yaml:"metric"`
	Seed       int64   `json:"random_state" yaml:"random_state"`
	Epochs     int     `json:"n_epochs" yaml:"n_epochs"`
}

// DefaultParams matches the explorer's fixed UMAP settings.
func DefaultParams() Params {
	return Params{
		NNeighbors: 15,
		MinDist:    0.1,
		Metric:     MetricCosine,
		Seed:       42,
		Epochs:     200,
	}
}

// Validate rejects unusable hyperparameters.
func (p Params) Validate() error {
	switch {
	case p.NNeighbors < 2:
		return arxiv.Errorf(arxiv.KindValidation, "projection", "n_neighbors must be at least 2, got %d", p.NNeighbors)
	case p.MinDist < 0 || p.MinDist > 1:
		return arxiv.Errorf(arxiv.KindValidation, "projection", "min_dist must be in [0, 1], got %g", p.MinDist)
	case p.Metric != MetricCosine && p.Metric != MetricEuclidean:
		return arxiv.Errorf(arxiv.KindValidation, "projection", "unsupported metric %q", p.Metric)
	case p.Epochs < 1:
		return arxiv.Errorf(arxiv.KindValidation, "projection", "n_epochs must be positive, got %d", p.Epochs)
	}
	return nil
}

// canonical renders params in a fixed field order.
func (p Params) canonical() string {
	return strings.Join([]string{
		"n_neighbors=" + strconv.Itoa(p.NNeighbors),
		"min_dist=" + strconv.FormatFloat(p.MinDist, 'g', -1, 64),
		"metric=" + p.Metric,
		"random_state=" + strconv.FormatInt(p.Seed, 10),
		"n_epochs=" + strconv.Itoa(p.Epochs),
	}, "\n")
}

const keyVersion = "v1"

// SelectionKey is the stable cache key of a selection projected with the
// given model, projector and params. Only the selection's canonical form
// enters the hash, so equal selections always share a key.
func SelectionKey(sel arxiv.Selection, model, projector string, p Params) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nselection=%s\nmodel=%s\nprojector=%s\n", keyVersion, sel.Canonical(), model, projector)
	b.WriteString(p.canonical())
	return digest(b.String())
}

// CorpusDigest identifies an exact set of paper ids, independent of order.
func CorpusDigest(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return digest(strings.Join(sorted, "\n"))
}

func digest(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
