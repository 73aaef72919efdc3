package semantic

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

const testDims = 16

// hashVector is a bag-of-words embedding: identical texts give identical
// vectors.
func hashVector(text string) []float32 {
	v := make([]float32, testDims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%testDims]++
	}
	return v
}

// hashEmbedder embeds with hashVector and counts the texts it was given.
type hashEmbedder struct {
	model     string
	batchSize int

	mu     sync.Mutex
	texts  int
	calls  int
	failOn int // 1-based call number that fails; 0 never fails
}

func newHashEmbedder(batchSize int) *hashEmbedder {
	return &hashEmbedder{model: "hash-test", batchSize: batchSize}
}

func (e *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failOn > 0 && e.calls == e.failOn {
		return nil, arxiv.Wrap(arxiv.KindModel, "test", errors.New("backend crashed"))
	}
	e.texts += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t)
	}
	return out, nil
}

func (e *hashEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return hashVector(query), nil
}

func (e *hashEmbedder) ModelName() string { return e.model }
func (e *hashEmbedder) Dimensions() int   { return testDims }
func (e *hashEmbedder) BatchSize() int    { return e.batchSize }

func (e *hashEmbedder) embeddedTexts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.texts
}

func makePapers(n int) []arxiv.Paper {
	papers := make([]arxiv.Paper, n)
	for i := range papers {
		papers[i] = arxiv.Paper{
			ArxivID:  fmt.Sprintf("2401.%05d", i),
			Title:    fmt.Sprintf("Paper %d", i),
			Abstract: fmt.Sprintf("word%d shared topic text number %d", i, i),
			Category: "cs.AI",
		}
	}
	return papers
}
