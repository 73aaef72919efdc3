// Package topics extracts topics from a corpus of abstracts on demand.
//
// Documents are tokenized and weighted with TF-IDF, then factorized with
// non-negative matrix factorization into topic-term and document-topic
// weights. Results are computed per request and never persisted.
package topics

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

// Bounds and defaults.
const (
	MinTopics          = 2
	MaxTopics          = 50
	MinDocuments       = 2
	DefaultTopTerms    = 10
	DefaultMaxFeatures = 1000
	DefaultIterations  = 200
	DefaultSeed        = 42

	maxDocRatio  = 0.95
	emptyTopicAt = 1e-9
)

// Document is one unit of text to model.
type Document struct {
	ID   string
	Text string
}

// FromPapers builds documents from title and abstract.
func FromPapers(papers []arxiv.Paper) []Document {
	docs := make([]Document, len(papers))
	for i, p := range papers {
		docs[i] = Document{ID: p.ArxivID, Text: p.Title + " " + p.Abstract}
	}
	return docs
}

// TermWeight is a term and its weight within a topic.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Topic is one extracted topic.
type Topic struct {
	ID       int          `json:"id"`
	Terms    []TermWeight `json:"terms"`
	DocCount int          `json:"doc_count"`
}

// Assignment is a document's topic mixture. Weights sum to 1 unless the
// document shares no terms with the vocabulary, in which case they are all
// zero and Dominant is 0.
type Assignment struct {
	ID       string    `json:"arxiv_id"`
	Dominant int       `json:"dominant"`
	Weights  []float64 `json:"weights"`
}

// Result is the outcome of one extraction.
type Result struct {
	// Requested is the topic count asked for; N is the count returned.
	Requested int  `json:"requested"`
	N         int  `json:"n_topics"`
	Capped    bool `json:"capped"`
	// CapReason says why N < Requested.
	CapReason   string       `json:"cap_reason,omitempty"`
	PaperCount  int          `json:"paper_count"`
	Vocabulary  int          `json:"vocabulary"`
	Topics      []Topic      `json:"topics"`
	Assignments []Assignment `json:"assignments"`
}

// SuggestTopics is the default topic count for a corpus of n documents.
func SuggestTopics(n int) int {
	return min(max(3, n/100), 15)
}

// Extractor runs topic extraction.
type Extractor struct {
	topTerms    int
	maxFeatures int
	iterations  int
	seed        uint64
	logger      *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTopTerms sets how many terms describe each topic.
func WithTopTerms(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.topTerms = n
		}
	}
}

// WithMaxFeatures caps the vocabulary size.
func WithMaxFeatures(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxFeatures = n
		}
	}
}

// WithIterations sets the number of factorization updates.
func WithIterations(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.iterations = n
		}
	}
}

// WithSeed sets the initialization seed.
func WithSeed(seed uint64) Option {
	return func(e *Extractor) { e.seed = seed }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		topTerms:    DefaultTopTerms,
		maxFeatures: DefaultMaxFeatures,
		iterations:  DefaultIterations,
		seed:        DefaultSeed,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs extraction with default settings.
func Extract(ctx context.Context, docs []Document, n int) (*Result, error) {
	return NewExtractor().Extract(ctx, docs, n)
}

// Extract models docs as n topics. n must be within [MinTopics, MaxTopics].
// When the corpus cannot support n topics (fewer documents or terms than n)
// the count is capped and the result says so. Topics whose factorization
// collapses to zero are dropped and reported the same way, so every
// returned topic has at least one term.
func (e *Extractor) Extract(ctx context.Context, docs []Document, n int) (*Result, error) {
	const op = "topics.extract"
	if n < MinTopics || n > MaxTopics {
		return nil, arxiv.Errorf(arxiv.KindValidation, op,
			"n_topics must be between %d and %d, got %d", MinTopics, MaxTopics, n)
	}
	if len(docs) < MinDocuments {
		return nil, arxiv.Errorf(arxiv.KindValidation, op,
			"at least %d documents required, got %d", MinDocuments, len(docs))
	}

	tok := newTokenizer()
	tokens := make([][]string, len(docs))
	for i, d := range docs {
		tokens[i] = tok.Tokens(d.Text)
	}
	v, vocab := buildTFIDF(tokens, e.maxFeatures)

	res := &Result{Requested: n, PaperCount: len(docs), Vocabulary: len(vocab.terms)}
	k := n
	if len(docs) < k {
		k = len(docs)
		res.CapReason = fmt.Sprintf("corpus has %d documents", len(docs))
	}
	if len(vocab.terms) < k {
		k = len(vocab.terms)
		res.CapReason = fmt.Sprintf("vocabulary has %d terms", len(vocab.terms))
	}
	if k < MinTopics {
		return nil, arxiv.Errorf(arxiv.KindValidation, op,
			"corpus supports %d topics, at least %d required", k, MinTopics)
	}

	w, h, err := factorize(ctx, v, k, e.iterations, e.seed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Keep topics with any term weight.
	var keep []int
	for t := range k {
		if maxOf(h.RawRowView(t)) > emptyTopicAt {
			keep = append(keep, t)
		}
	}
	if len(keep) < k {
		res.CapReason = fmt.Sprintf("%d topics collapsed during factorization", k-len(keep))
	}
	if len(keep) < MinTopics {
		return nil, arxiv.Errorf(arxiv.KindValidation, op,
			"corpus supports %d topics, at least %d required", len(keep), MinTopics)
	}
	res.N = len(keep)
	res.Capped = res.N < n

	res.Topics = make([]Topic, len(keep))
	for i, t := range keep {
		res.Topics[i] = Topic{ID: i, Terms: topTerms(h.RawRowView(t), vocab, e.topTerms)}
	}

	res.Assignments = make([]Assignment, len(docs))
	for d, doc := range docs {
		row := w.RawRowView(d)
		weights := make([]float64, len(keep))
		var sum float64
		for i, t := range keep {
			weights[i] = row[t]
			sum += row[t]
		}
		if sum > 0 {
			for i := range weights {
				weights[i] /= sum
			}
		}
		dom := dominant(weights)
		res.Topics[dom].DocCount++
		res.Assignments[d] = Assignment{ID: doc.ID, Dominant: dom, Weights: weights}
	}

	e.logger.Debug("extracted topics",
		zap.Int("papers", len(docs)),
		zap.Int("requested", n),
		zap.Int("topics", res.N),
		zap.Int("vocabulary", res.Vocabulary))
	return res, nil
}

// dominant returns the index of the largest weight, preferring the lowest
// index on ties.
func dominant(weights []float64) int {
	best := 0
	for i, w := range weights {
		if w > weights[best] {
			best = i
		}
	}
	return best
}

func topTerms(row []float64, vocab vocabulary, limit int) []TermWeight {
	idx := make([]int, 0, len(row))
	for j, w := range row {
		if w > emptyTopicAt {
			idx = append(idx, j)
		}
	}
	sort.Slice(idx, func(a, b int) bool {
		if row[idx[a]] != row[idx[b]] {
			return row[idx[a]] > row[idx[b]]
		}
		return vocab.terms[idx[a]] < vocab.terms[idx[b]]
	})
	if len(idx) > limit {
		idx = idx[:limit]
	}
	out := make([]TermWeight, len(idx))
	for i, j := range idx {
		out[i] = TermWeight{Term: vocab.terms[j], Weight: row[j]}
	}
	return out
}

func maxOf(xs []float64) float64 {
	var m float64
	for _, x := range xs {
		m = max(m, x)
	}
	return m
}
