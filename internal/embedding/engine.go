package embedding

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

const (
	// DefaultBatchSize bounds the texts sent to the model in one call.
	DefaultBatchSize = 100

	// QueryPrefix is the retrieval instruction the default model expects on
	// queries. Documents are embedded without it.
	QueryPrefix = "Represent this sentence for searching relevant passages: "
)

// Engine batches texts through a Provider and checks every vector against
// the model's dimension.
type Engine struct {
	provider    Provider
	batchSize   int
	queryPrefix string
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBatchSize sets the maximum texts per provider call.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithQueryPrefix sets the instruction prepended to queries. An empty
// prefix embeds queries as-is.
func WithQueryPrefix(prefix string) EngineOption {
	return func(e *Engine) { e.queryPrefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine wraps provider.
func NewEngine(provider Provider, opts ...EngineOption) *Engine {
	e := &Engine{
		provider:    provider,
		batchSize:   DefaultBatchSize,
		queryPrefix: QueryPrefix,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ModelName identifies the model. Stored embeddings and projection cache
// keys record it.
func (e *Engine) ModelName() string { return e.provider.ModelName() }

// Dimensions is the vector length every embedding must have.
func (e *Engine) Dimensions() int { return e.provider.Dimensions() }

// BatchSize is the maximum texts per provider call.
func (e *Engine) BatchSize() int { return e.batchSize }

// EmbedBatch embeds texts, splitting them into provider-sized chunks. It
// returns either every vector or an error.
func (e *Engine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.batchSize, len(texts))
		embs, err := e.provider.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if arxiv.KindOf(err) == arxiv.KindInternal {
				err = arxiv.Wrap(arxiv.KindModel, "embed", err)
			}
			return nil, err
		}
		if len(embs) != end-start {
			return nil, arxiv.Errorf(arxiv.KindModel, "embed",
				"model returned %d embeddings for %d texts", len(embs), end-start)
		}
		for _, emb := range embs {
			if emb.Dimensions() != e.Dimensions() {
				return nil, arxiv.Errorf(arxiv.KindModel, "embed",
					"model returned %d dimensions, want %d", emb.Dimensions(), e.Dimensions())
			}
			out = append(out, emb.Vector)
		}
		e.logger.Debug("embedded batch", zap.Int("texts", end-start))
	}
	return out, nil
}

// EmbedQuery embeds a search query with the query prefix.
func (e *Engine) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, arxiv.Errorf(arxiv.KindValidation, "embed query", "query is empty")
	}
	vecs, err := e.EmbedBatch(ctx, []string{e.queryPrefix + query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vecs[0], nil
}
