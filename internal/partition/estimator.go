package partition

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
	"github.com/lmmx/arxiv-explorer/internal/hub"
)

// Remote exposes the partition metadata the estimator can read without a
// full download.
type Remote interface {
	FileInfo(ctx context.Context, key arxiv.PartitionKey) (*hub.FileInfo, error)
	RowCount(ctx context.Context, key arxiv.PartitionKey) (int64, error)
}

// Source says where a partition's count came from.
type Source string

const (
	SourceCached        Source = "cached"         // exact, from the local catalog
	SourceFooter        Source = "footer"         // exact, from the remote parquet footer
	SourceSizeHeuristic Source = "size_heuristic" // remote file size / BytesPerPaper
	SourceMissing       Source = "missing"        // partition does not exist upstream
	SourceUnknown       Source = "unknown"        // resolved only by downloading
)

const (
	// BytesPerPaper is the rough parquet size of one paper.
	BytesPerPaper = 1000
	// DefaultConcurrency bounds parallel metadata requests.
	DefaultConcurrency = 4
	// DefaultThroughput is the assumed embedding rate in papers per second.
	DefaultThroughput = 20.0
)

// PartitionEstimate is the count for one partition.
type PartitionEstimate struct {
	Key    arxiv.PartitionKey `json:"key"`
	Rows   int64              `json:"rows"`
	Source Source             `json:"source"`
}

// Count totals a group of partitions.
type Count struct {
	Total     int64 `json:"total"`
	Cached    int64 `json:"cached"`
	Estimated int64 `json:"estimated"`
	Unknown   int   `json:"unknown_files,omitempty"`
}

func (c *Count) add(p PartitionEstimate) {
	c.Total += p.Rows
	switch p.Source {
	case SourceCached:
		c.Cached += p.Rows
	case SourceUnknown:
		c.Unknown++
	default:
		c.Estimated += p.Rows
	}
}

// TimeEstimate is the projected embedding time for a count.
type TimeEstimate struct {
	Seconds float64 `json:"seconds"`
	Human   string  `json:"human"`
}

// Estimate is an advisory size for a selection. Counts are never used once
// the actual partitions are loaded.
type Estimate struct {
	Partitions     []PartitionEstimate `json:"partitions"`
	ByCategory     map[string]Count    `json:"by_category"`
	ByMonth        map[string]Count    `json:"by_month"`
	Total          int64               `json:"total"`
	TotalCached    int64               `json:"total_cached"`
	TotalEstimated int64               `json:"total_estimated"`
	CachedFiles    int                 `json:"cached_files"`
	EstimatedFiles int                 `json:"estimated_files"`
	UnknownFiles   int                 `json:"unknown_files"`
	Time           TimeEstimate        `json:"time_estimate"`
}

// Estimator counts selections using the local catalog first and remote
// metadata second.
type Estimator struct {
	cache       *Cache
	remote      Remote
	concurrency int
	throughput  float64
	logger      *zap.Logger
}

// EstimatorOption configures an Estimator.
type EstimatorOption func(*Estimator)

// WithConcurrency bounds parallel remote lookups.
func WithConcurrency(n int) EstimatorOption {
	return func(e *Estimator) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithThroughput sets the papers/second rate used for time estimates.
func WithThroughput(papersPerSecond float64) EstimatorOption {
	return func(e *Estimator) {
		if papersPerSecond > 0 {
			e.throughput = papersPerSecond
		}
	}
}

// WithEstimatorLogger sets the logger.
func WithEstimatorLogger(l *zap.Logger) EstimatorOption {
	return func(e *Estimator) { e.logger = l }
}

// NewEstimator creates an estimator. remote may be nil, in which case
// uncached partitions are reported as unknown.
func NewEstimator(cache *Cache, remote Remote, opts ...EstimatorOption) *Estimator {
	e := &Estimator{
		cache:       cache,
		remote:      remote,
		concurrency: DefaultConcurrency,
		throughput:  DefaultThroughput,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate counts every partition in sel without downloading any of them.
func (e *Estimator) Estimate(ctx context.Context, sel arxiv.Selection) (*Estimate, error) {
	keys := sel.Keys()
	parts := make([]PartitionEstimate, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			p, err := e.estimateOne(gctx, key)
			if err != nil {
				return err
			}
			parts[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	est := &Estimate{
		Partitions: parts,
		ByCategory: map[string]Count{},
		ByMonth:    map[string]Count{},
	}
	for _, p := range parts {
		c := est.ByCategory[p.Key.Category]
		c.add(p)
		est.ByCategory[p.Key.Category] = c

		m := est.ByMonth[p.Key.Period.String()]
		m.add(p)
		est.ByMonth[p.Key.Period.String()] = m

		est.Total += p.Rows
		switch p.Source {
		case SourceCached:
			est.TotalCached += p.Rows
			est.CachedFiles++
		case SourceUnknown:
			est.UnknownFiles++
		default:
			est.TotalEstimated += p.Rows
			est.EstimatedFiles++
		}
	}
	est.Time = EmbeddingTime(est.Total, e.throughput)
	return est, nil
}

func (e *Estimator) estimateOne(ctx context.Context, key arxiv.PartitionKey) (PartitionEstimate, error) {
	p := PartitionEstimate{Key: key, Source: SourceUnknown}

	if entry, ok, err := e.cache.Lookup(key); err != nil {
		return p, err
	} else if ok {
		p.Rows, p.Source = entry.Rows, SourceCached
		return p, nil
	}
	if e.remote == nil {
		return p, nil
	}

	rows, err := e.remote.RowCount(ctx, key)
	switch {
	case err == nil:
		p.Rows, p.Source = rows, SourceFooter
		return p, nil
	case ctx.Err() != nil:
		return p, ctx.Err()
	case arxiv.IsNotFound(err):
		p.Source = SourceMissing
		return p, nil
	}
	e.logger.Debug("footer read failed, falling back to file size",
		zap.String("partition", key.String()), zap.Error(err))

	info, err := e.remote.FileInfo(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return p, ctx.Err()
		}
		return p, nil
	}
	if info.Size > 0 {
		p.Rows, p.Source = info.Size/BytesPerPaper, SourceSizeHeuristic
	}
	return p, nil
}

// EmbeddingTime projects how long embedding papers takes at the given rate.
func EmbeddingTime(papers int64, papersPerSecond float64) TimeEstimate {
	if papersPerSecond <= 0 {
		papersPerSecond = DefaultThroughput
	}
	secs := float64(papers) / papersPerSecond
	return TimeEstimate{Seconds: math.Round(secs*10) / 10, Human: humanDuration(secs)}
}

func humanDuration(secs float64) string {
	d := time.Duration(secs * float64(time.Second))
	switch {
	case d < time.Minute:
		return "< 1 minute"
	case d < time.Hour:
		return fmt.Sprintf("~%d minutes", int(math.Ceil(d.Minutes())))
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) - h*60
		return fmt.Sprintf("~%dh %dm", h, m)
	}
}
