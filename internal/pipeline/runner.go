// Package pipeline runs a selection through download, embedding and
// projection, streaming progress, and hands back the resulting Corpus.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
	"github.com/lmmx/arxiv-explorer/internal/partition"
	"github.com/lmmx/arxiv-explorer/internal/progress"
	"github.com/lmmx/arxiv-explorer/internal/projection"
	"github.com/lmmx/arxiv-explorer/internal/semantic"
)

// DefaultDownloadConcurrency bounds parallel partition downloads.
const DefaultDownloadConcurrency = 4

// Runner executes pipeline runs. One Runner may serve concurrent runs;
// writes to the same embedding partition are serialized by the store.
type Runner struct {
	partitions  *partition.Cache
	store       *semantic.Store
	projections *projection.Cache
	model       semantic.QueryEmbedder

	taxonomy    *arxiv.Taxonomy
	bounds      arxiv.Bounds
	concurrency int
	metrics     *Metrics
	logger      *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTaxonomy sets the category taxonomy selections are validated against.
func WithTaxonomy(t *arxiv.Taxonomy) Option {
	return func(r *Runner) {
		if t != nil {
			r.taxonomy = t
		}
	}
}

// WithBounds sets the valid month range.
func WithBounds(b arxiv.Bounds) Option {
	return func(r *Runner) { r.bounds = b }
}

// WithDownloadConcurrency bounds parallel downloads.
func WithDownloadConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner wires the stages. model embeds search queries and must be the
// model the store embeds documents with.
func NewRunner(partitions *partition.Cache, store *semantic.Store, projections *projection.Cache, model semantic.QueryEmbedder, opts ...Option) (*Runner, error) {
	r := &Runner{
		partitions:  partitions,
		store:       store,
		projections: projections,
		model:       model,
		taxonomy:    arxiv.DefaultTaxonomy(),
		bounds:      arxiv.DefaultBounds(time.Now()),
		concurrency: DefaultDownloadConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("creating metrics: %w", err)
		}
		r.metrics = m
	}
	return r, nil
}

// Run processes sel and streams its progress to sink. Exactly one terminal
// event is emitted: Complete with the returned corpus, or Error with the
// returned error. Work committed before a failure stays on disk.
func (r *Runner) Run(ctx context.Context, sel arxiv.Selection, sink progress.Sink) (*Corpus, error) {
	em := progress.NewEmitter(sink)
	start := time.Now()

	corpus, err := r.run(ctx, sel, em)
	if err != nil {
		kind := arxiv.KindOf(err)
		_ = em.Fail(err)
		r.metrics.Runs.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(kind))))
		r.logger.Warn("run failed",
			zap.String("selection", sel.Canonical()),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, err
	}

	corpus.stats.Duration = time.Since(start)
	_ = em.Complete(corpus.Len(), corpus.FromCache())
	r.metrics.Runs.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "ok")))
	r.logger.Info("run complete",
		zap.String("selection", sel.Canonical()),
		zap.Int("papers", corpus.Len()),
		zap.Bool("from_cache", corpus.FromCache()),
		zap.Duration("took", corpus.stats.Duration))
	return corpus, nil
}

func (r *Runner) run(ctx context.Context, sel arxiv.Selection, em *progress.Emitter) (*Corpus, error) {
	if err := sel.Validate(r.taxonomy, r.bounds); err != nil {
		return nil, err
	}
	stats := RunStats{}

	t := time.Now()
	if err := r.download(ctx, sel, em, &stats); err != nil {
		return nil, err
	}
	r.observeStage(ctx, "download", t)

	t = time.Now()
	papers, keys, err := r.embed(ctx, sel, em, &stats)
	if err != nil {
		return nil, err
	}
	r.observeStage(ctx, "embed", t)

	m, err := semantic.NewMatrix(r.model.ModelName(), r.model.Dimensions(), papers)
	if err != nil {
		return nil, err
	}

	t = time.Now()
	if err := em.ProjectStart(m.Len()); err != nil {
		return nil, err
	}
	res, err := r.projections.Project(ctx, sel, r.model.ModelName(), m.IDs(), m.Vectors())
	if err != nil {
		return nil, err
	}
	lookup := "miss"
	if res.FromCache {
		lookup = "hit"
	}
	r.metrics.ProjectionLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", lookup)))
	if err := em.ProjectComplete(res.FromCache); err != nil {
		return nil, err
	}
	r.observeStage(ctx, "project", t)

	return newCorpus(sel, m, keys, res, r.model, stats), nil
}

// PartitionError ties a failure to the partition it happened on. Its kind
// is the kind of Err.
type PartitionError struct {
	Key arxiv.PartitionKey
	Op  string
	Err error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PartitionError) Unwrap() error { return e.Err }

// download makes every partition of sel local, fetching missing ones in
// parallel. The first failure cancels the rest.
func (r *Runner) download(ctx context.Context, sel arxiv.Selection, em *progress.Emitter, stats *RunStats) error {
	cached, missing, err := r.partitions.Plan(sel)
	if err != nil {
		return err
	}
	total := sel.Len()
	stats.PartitionsCached = len(cached)
	r.metrics.PartitionsCached.Add(ctx, int64(len(cached)))
	if err := em.DownloadStart(total, len(cached)); err != nil {
		return err
	}
	if len(missing) == 0 {
		return em.DownloadProgress("", total, total)
	}

	var mu sync.Mutex
	done := len(cached)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, key := range missing {
		g.Go(func() error {
			_, fetched, err := r.partitions.Ensure(gctx, key)
			if err != nil {
				return &PartitionError{Key: key, Op: "downloading", Err: err}
			}
			if fetched {
				r.metrics.PartitionsFetched.Add(ctx, 1)
			}
			mu.Lock()
			defer mu.Unlock()
			if fetched {
				stats.PartitionsFetched++
			}
			done++
			return em.DownloadProgress(key.String(), done, total)
		})
	}
	return g.Wait()
}

// embed loads every partition and brings its embeddings up to date, one
// partition at a time so progress counts only grow. A paper listed by more
// than one partition is embedded once, under the partition that owns it. It
// returns the corpus papers with embeddings attached and the partition each
// came from.
func (r *Runner) embed(ctx context.Context, sel arxiv.Selection, em *progress.Emitter, stats *RunStats) ([]arxiv.Paper, map[string]arxiv.PartitionKey, error) {
	loaded := make(map[arxiv.PartitionKey][]arxiv.Paper, sel.Len())
	for _, key := range sel.Keys() {
		papers, err := r.partitions.Load(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		loaded[key] = papers
	}
	owned, owners, err := r.assignOwners(sel.Keys(), loaded)
	if err != nil {
		return nil, nil, err
	}
	total := len(owners)
	if err := em.EmbedStart(total); err != nil {
		return nil, nil, err
	}

	base := 0
	var emitErr error
	corpus := make([]arxiv.Paper, 0, total)
	for _, key := range sel.Keys() {
		papers := owned[key]
		if len(papers) == 0 {
			if err := em.EmbedProgress(key.String(), base, total, true); err != nil {
				return nil, nil, err
			}
			stats.PartitionsSkipped++
			r.metrics.EmbedSkipped.Add(ctx, 1)
			continue
		}
		reporter := semantic.ProgressFunc(func(p semantic.SyncProgress) {
			if err := em.EmbedProgress(key.String(), base+p.Current, total, p.Skipped); err != nil && emitErr == nil {
				emitErr = err
			}
		})
		st, err := r.store.Sync(ctx, key, papers, reporter)
		if st != nil {
			stats.PapersEmbedded += st.Embedded
			r.metrics.PapersEmbedded.Add(ctx, int64(st.Embedded))
		}
		if err != nil {
			return nil, nil, err
		}
		if emitErr != nil {
			return nil, nil, emitErr
		}
		if st.Skipped {
			stats.PartitionsSkipped++
			r.metrics.EmbedSkipped.Add(ctx, 1)
		}
		base += st.Papers

		idx, err := r.store.Load(key)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range papers {
			vec, ok := idx.Embeddings[p.ArxivID]
			if !ok {
				return nil, nil, arxiv.Errorf(arxiv.KindCorruptCache, "pipeline.embed",
					"%s has no embedding for %s after sync", key, p.ArxivID)
			}
			p.Embedding = vec
			corpus = append(corpus, p)
		}
	}
	return corpus, owners, nil
}

// assignOwners picks one partition per arxiv_id. A partition whose committed
// embeddings already hold the paper wins; otherwise the first partition in
// selection order that lists it does. owned holds each partition's papers in
// file order, without duplicates.
func (r *Runner) assignOwners(keys []arxiv.PartitionKey, loaded map[arxiv.PartitionKey][]arxiv.Paper) (map[arxiv.PartitionKey][]arxiv.Paper, map[string]arxiv.PartitionKey, error) {
	owners := make(map[string]arxiv.PartitionKey)
	for _, key := range keys {
		idx, err := r.store.Load(key)
		if arxiv.IsCorruptCache(err) {
			// Sync rebuilds the file; nothing in it counts as embedded.
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		for _, p := range loaded[key] {
			if _, taken := owners[p.ArxivID]; taken {
				continue
			}
			if idx.HasPaper(p.ArxivID) {
				owners[p.ArxivID] = key
			}
		}
	}
	for _, key := range keys {
		for _, p := range loaded[key] {
			if _, taken := owners[p.ArxivID]; !taken {
				owners[p.ArxivID] = key
			}
		}
	}

	owned := make(map[arxiv.PartitionKey][]arxiv.Paper, len(keys))
	shared := 0
	for _, key := range keys {
		seen := make(map[string]bool, len(loaded[key]))
		for _, p := range loaded[key] {
			if seen[p.ArxivID] {
				continue
			}
			seen[p.ArxivID] = true
			if owners[p.ArxivID] == key {
				owned[key] = append(owned[key], p)
			} else {
				shared++
			}
		}
	}
	if shared > 0 {
		r.logger.Debug("papers listed by more than one partition",
			zap.Int("papers", shared), zap.Int("unique", len(owners)))
	}
	return owned, owners, nil
}

func (r *Runner) observeStage(ctx context.Context, stage string, start time.Time) {
	r.metrics.StageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}
