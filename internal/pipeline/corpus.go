package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
	"github.com/lmmx/arxiv-explorer/internal/projection"
	"github.com/lmmx/arxiv-explorer/internal/semantic"
	"github.com/lmmx/arxiv-explorer/internal/topics"
)

// TopCategories is how many categories Stats lists.
const TopCategories = 10

// RunStats describes the work a run did.
type RunStats struct {
	PartitionsCached  int           `json:"partitions_cached"`
	PartitionsFetched int           `json:"partitions_fetched"`
	PapersEmbedded    int           `json:"papers_embedded"`
	PartitionsSkipped int           `json:"partitions_skipped"`
	Duration          time.Duration `json:"duration"`
}

// MappedPaper is a paper with its projected position.
type MappedPaper struct {
	arxiv.Paper
	Month string  `json:"month"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
}

// Hit is a search result with its projected position.
type Hit struct {
	MappedPaper
	Score float32 `json:"score"`
}

// CategoryCount is a category and its paper count.
type CategoryCount struct {
	Category string `json:"primary_subject"`
	Papers   int    `json:"len"`
}

// Stats summarizes a corpus.
type Stats struct {
	TotalPapers int             `json:"total_papers"`
	TopSubjects []CategoryCount `json:"top_subjects"`
}

// TopicStatus says whether topics can be extracted and suggests a count.
type TopicStatus struct {
	Available       bool   `json:"available"`
	Reason          string `json:"reason,omitempty"`
	PaperCount      int    `json:"paper_count"`
	SuggestedTopics int    `json:"suggested_topics"`
}

// Corpus is the result of a run: the selection's papers with embeddings
// and 2D coordinates. It is immutable and safe for concurrent reads.
type Corpus struct {
	selection     arxiv.Selection
	matrix        *semantic.Matrix
	keys          map[string]arxiv.PartitionKey
	coords        map[string]projection.Point
	projectionKey string
	fromCache     bool
	model         semantic.QueryEmbedder
	stats         RunStats
}

func newCorpus(sel arxiv.Selection, m *semantic.Matrix, keys map[string]arxiv.PartitionKey, res *projection.Result, model semantic.QueryEmbedder, stats RunStats) *Corpus {
	coords := make(map[string]projection.Point, len(res.IDs))
	for i, id := range res.IDs {
		coords[id] = res.Coords[i]
	}
	return &Corpus{
		selection:     sel,
		matrix:        m,
		keys:          keys,
		coords:        coords,
		projectionKey: res.Key,
		fromCache:     res.FromCache,
		model:         model,
		stats:         stats,
	}
}

// Selection returns the selection the corpus was built from.
func (c *Corpus) Selection() arxiv.Selection { return c.selection }

// Len returns the number of papers.
func (c *Corpus) Len() int { return c.matrix.Len() }

// FromCache reports whether the projection was served from cache.
func (c *Corpus) FromCache() bool { return c.fromCache }

// ProjectionKey is the projection cache key of this corpus.
func (c *Corpus) ProjectionKey() string { return c.projectionKey }

// RunStats returns what the run that built the corpus did.
func (c *Corpus) RunStats() RunStats { return c.stats }

func (c *Corpus) mapped(p arxiv.Paper) MappedPaper {
	pt := c.coords[p.ArxivID]
	return MappedPaper{Paper: p, Month: c.keys[p.ArxivID].Period.String(), X: pt.X, Y: pt.Y}
}

// Papers returns the papers passing filter, ordered by arxiv_id.
func (c *Corpus) Papers(filter arxiv.Filter) []MappedPaper {
	out := make([]MappedPaper, 0, c.matrix.Len())
	for _, p := range c.matrix.Papers() {
		if filter.Match(c.keys[p.ArxivID]) {
			out = append(out, c.mapped(p))
		}
	}
	return out
}

// Search returns the k papers most similar to query.
func (c *Corpus) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	results, err := c.matrix.Search(ctx, c.model, query, k)
	if err != nil {
		return nil, err
	}
	return c.hits(results), nil
}

// Similar returns the k papers most similar to the paper with id.
func (c *Corpus) Similar(id string, k int) ([]Hit, error) {
	results, err := c.matrix.FindSimilar(id, k)
	if err != nil {
		return nil, err
	}
	return c.hits(results), nil
}

func (c *Corpus) hits(results []semantic.SearchResult) []Hit {
	out := make([]Hit, len(results))
	for i, r := range results {
		out[i] = Hit{MappedPaper: c.mapped(r.Paper), Score: r.Score}
	}
	return out
}

// Topics extracts n topics from the papers passing filter. Results are
// computed on every call.
func (c *Corpus) Topics(ctx context.Context, filter arxiv.Filter, n int, opts ...topics.Option) (*topics.Result, error) {
	var papers []arxiv.Paper
	for _, p := range c.matrix.Papers() {
		if filter.Match(c.keys[p.ArxivID]) {
			papers = append(papers, p)
		}
	}
	return topics.NewExtractor(opts...).Extract(ctx, topics.FromPapers(papers), n)
}

// TopicStatus reports whether topic extraction can run on the corpus.
func (c *Corpus) TopicStatus() TopicStatus {
	n := c.matrix.Len()
	st := TopicStatus{Available: n >= topics.MinDocuments, PaperCount: n, SuggestedTopics: topics.SuggestTopics(n)}
	if !st.Available {
		st.Reason = "not enough papers"
	}
	return st
}

// Stats returns the paper count and the largest categories, ties ordered
// by name.
func (c *Corpus) Stats() Stats {
	counts := make(map[string]int)
	for _, p := range c.matrix.Papers() {
		counts[p.Category]++
	}
	top := make([]CategoryCount, 0, len(counts))
	for cat, n := range counts {
		top = append(top, CategoryCount{Category: cat, Papers: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Papers != top[j].Papers {
			return top[i].Papers > top[j].Papers
		}
		return top[i].Category < top[j].Category
	})
	if len(top) > TopCategories {
		top = top[:TopCategories]
	}
	return Stats{TotalPapers: c.matrix.Len(), TopSubjects: top}
}
