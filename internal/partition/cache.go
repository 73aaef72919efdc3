// Package partition keeps the local cache of downloaded dataset partitions
// and estimates the size of selections that are not cached yet.
package partition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
	"github.com/lmmx/arxiv-explorer/internal/hub"
)

// Downloader fetches one partition to a local path atomically.
type Downloader interface {
	Download(ctx context.Context, key arxiv.PartitionKey, dest string) (*hub.Download, error)
}

// paperRow is the on-disk parquet schema of a partition.
type paperRow struct {
	ArxivID        string   `parquet:"arxiv_id"`
	Title          string   `parquet:"title,optional"`
	Abstract       string   `parquet:"abstract,optional"`
	Authors        []string `parquet:"authors,list"`
	SubmissionDate string   `parquet:"submission_date,optional"`
	PrimarySubject string   `parquet:"primary_subject,optional"`
}

// Cache is the durable local store of partitions. Files live under root at
// YYYY/MM/<category>.parquet and are tracked in the catalog. Cached files
// are never replaced except when found unreadable.
type Cache struct {
	root    string
	catalog *Catalog
	source  Downloader
	logger  *zap.Logger
	now     func() time.Time
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithClock overrides the clock used for fetch timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string, catalog *Catalog, source Downloader, opts ...Option) *Cache {
	c := &Cache{
		root:    dir,
		catalog: catalog,
		source:  source,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog returns the underlying catalog.
func (c *Cache) Catalog() *Catalog { return c.catalog }

// Path is where key's parquet file lives.
func (c *Cache) Path(key arxiv.PartitionKey) string {
	return filepath.Join(c.root, key.LocalPath(".parquet"))
}

// Lookup returns the catalog entry for key if the partition is cached and
// its file is present.
func (c *Cache) Lookup(key arxiv.PartitionKey) (Entry, bool, error) {
	e, ok, err := c.catalog.Get(key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if _, err := os.Stat(c.Path(key)); err != nil {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Plan splits a selection into partitions already cached and partitions
// that need fetching, both in canonical order.
func (c *Cache) Plan(sel arxiv.Selection) (cached, missing []arxiv.PartitionKey, err error) {
	for _, key := range sel.Keys() {
		_, ok, err := c.Lookup(key)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			cached = append(cached, key)
		} else {
			missing = append(missing, key)
		}
	}
	return cached, missing, nil
}

type ensureResult struct {
	entry   Entry
	fetched bool
}

// Ensure makes key available locally, downloading it when absent. The
// boolean reports whether a download happened. Concurrent calls for the
// same key share one download.
func (c *Cache) Ensure(ctx context.Context, key arxiv.PartitionKey) (Entry, bool, error) {
	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if e, ok, err := c.Lookup(key); err != nil {
			return nil, err
		} else if ok {
			return ensureResult{entry: e}, nil
		}
		e, err := c.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		return ensureResult{entry: e, fetched: true}, nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	r := v.(ensureResult)
	return r.entry, r.fetched, nil
}

func (c *Cache) fetch(ctx context.Context, key arxiv.PartitionKey) (Entry, error) {
	path := c.Path(key)
	start := c.now()
	dl, err := c.source.Download(ctx, key, path)
	if err != nil {
		return Entry{}, fmt.Errorf("fetching %s: %w", key, err)
	}

	rows, err := countRows(path)
	if err != nil {
		os.Remove(path)
		return Entry{}, arxiv.Wrap(arxiv.KindCorruptCache, "partition.fetch",
			fmt.Errorf("downloaded %s is not a readable parquet file: %w", key, err))
	}

	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		rel = path
	}
	e := Entry{
		Key:       key,
		Path:      filepath.ToSlash(rel),
		Rows:      rows,
		Size:      dl.Size,
		Revision:  dl.Revision,
		FetchedAt: c.now().UTC(),
	}
	if err := c.catalog.Put(e); err != nil {
		return Entry{}, err
	}
	c.logger.Info("cached partition",
		zap.String("partition", key.String()),
		zap.Int64("rows", rows),
		zap.Int64("bytes", dl.Size),
		zap.Duration("took", c.now().Sub(start)))
	return e, nil
}

// Load returns the papers of one partition, fetching it if needed. A cached
// file that cannot be read is deleted and fetched again once; if the fresh
// copy is unreadable too, a CorruptCache error is returned.
func (c *Cache) Load(ctx context.Context, key arxiv.PartitionKey) ([]arxiv.Paper, error) {
	if _, _, err := c.Ensure(ctx, key); err != nil {
		return nil, err
	}
	papers, err := readPapers(c.Path(key), key)
	if err == nil {
		return papers, nil
	}

	c.logger.Warn("cached partition unreadable, refetching",
		zap.String("partition", key.String()),
		zap.Error(err))
	if err := c.Evict(key); err != nil {
		return nil, err
	}
	if _, _, err := c.Ensure(ctx, key); err != nil {
		return nil, err
	}
	papers, err = readPapers(c.Path(key), key)
	if err != nil {
		return nil, arxiv.Wrap(arxiv.KindCorruptCache, "partition.load", fmt.Errorf("%s: %w", key, err))
	}
	return papers, nil
}

// Evict removes a partition's file and catalog record.
func (c *Cache) Evict(key arxiv.PartitionKey) error {
	if err := os.Remove(c.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return c.catalog.Delete(key)
}

// Summary aggregates the cached partitions by year and month.
func (c *Cache) Summary() (*Summary, error) {
	return c.catalog.Summary()
}

func countRows(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	pf, err := parquet.OpenFile(f, info.Size(), parquet.SkipPageIndex(true), parquet.SkipBloomFilters(true))
	if err != nil {
		return 0, err
	}
	return pf.NumRows(), nil
}

// readPapers decodes a partition file. Rows without an id and repeated ids
// are dropped; the category is the partition's category.
func readPapers(path string, key arxiv.PartitionKey) ([]arxiv.Paper, error) {
	rows, err := parquet.ReadFile[paperRow](path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rows))
	papers := make([]arxiv.Paper, 0, len(rows))
	for _, r := range rows {
		if r.ArxivID == "" || seen[r.ArxivID] {
			continue
		}
		seen[r.ArxivID] = true
		papers = append(papers, arxiv.Paper{
			ArxivID:        r.ArxivID,
			Category:       key.Category,
			SubmissionDate: r.SubmissionDate,
			Title:          r.Title,
			Abstract:       r.Abstract,
			Authors:        r.Authors,
		})
	}
	return papers, nil
}
