package projection

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
	"github.com/lmmx/arxiv-explorer/internal/diskcache"
)

// entryVersion is the on-disk format of cache entries.
const entryVersion = 1

// Entry is one immutable cached projection.
type Entry struct {
	Version   int
	Key       string
	Selection string
	Model     string
	Projector string
	Params    Params
	IDs       []string
	Coords    []Point
	CreatedAt time.Time
}

// Result is a projection of an exact corpus. IDs are in ascending order and
// Coords[i] belongs to IDs[i].
type Result struct {
	Key       string   `json:"key"`
	IDs       []string `json:"ids"`
	Coords    []Point  `json:"coords"`
	FromCache bool     `json:"from_cache"`
}

// Cache stores projections keyed by selection, model and params. An entry
// is served only to a request whose paper ids match it exactly; a corpus
// that changed gets a new entry under a new name and old entries are never
// rewritten.
type Cache struct {
	files     *diskcache.Store
	projector Projector
	params    Params
	logger    *zap.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithParams sets the projection hyperparameters.
func WithParams(p Params) Option {
	return func(c *Cache) { c.params = p }
}

// WithProjector replaces the default UMAP projector.
func WithProjector(p Projector) Option {
	return func(c *Cache) { c.projector = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string, opts ...Option) *Cache {
	c := &Cache{
		files:     diskcache.New(dir),
		projector: UMAP{},
		params:    DefaultParams(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Params returns the hyperparameters in use.
func (c *Cache) Params() Params { return c.params }

// Key returns the selection part of the cache key for sel under model.
func (c *Cache) Key(sel arxiv.Selection, model string) string {
	return SelectionKey(sel, model, c.projector.Name(), c.params)
}

func entryName(selKey, corpus string) string {
	return selKey + "-" + corpus + ".gob"
}

// Project returns 2D coordinates for exactly the given papers. ids and
// vectors are parallel; their order does not matter.
func (c *Cache) Project(ctx context.Context, sel arxiv.Selection, model string, ids []string, vectors [][]float32) (*Result, error) {
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("projection: %d ids for %d vectors", len(ids), len(vectors))
	}
	if len(ids) < MinSamples {
		return nil, tooFewSamples(len(ids))
	}
	if err := c.params.Validate(); err != nil {
		return nil, err
	}

	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return ids[order[a]] < ids[order[b]] })
	sortedIDs := make([]string, len(ids))
	sortedVecs := make([][]float32, len(ids))
	for i, o := range order {
		sortedIDs[i] = ids[o]
		sortedVecs[i] = vectors[o]
	}
	if dup := firstDuplicate(sortedIDs); dup != "" {
		return nil, arxiv.Errorf(arxiv.KindInternal, "projection", "paper %s appears twice in the corpus", dup)
	}

	selKey := c.Key(sel, model)
	name := entryName(selKey, CorpusDigest(sortedIDs))

	if e, ok := c.lookup(name, sortedIDs); ok {
		c.logger.Debug("projection cache hit", zap.String("key", selKey), zap.Int("papers", len(sortedIDs)))
		return &Result{Key: selKey, IDs: e.IDs, Coords: e.Coords, FromCache: true}, nil
	}
	if stale := c.staleEntries(selKey, name); stale > 0 {
		c.logger.Info("corpus changed since last projection, recomputing",
			zap.String("key", selKey), zap.Int("stale_entries", stale))
	}

	start := time.Now()
	coords, err := c.projector.Project(ctx, sortedVecs, c.params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if arxiv.KindOf(err) == arxiv.KindInternal {
			err = arxiv.Wrap(arxiv.KindModel, "projection", err)
		}
		return nil, fmt.Errorf("projecting %d papers: %w", len(sortedIDs), err)
	}
	if len(coords) != len(sortedIDs) {
		return nil, arxiv.Errorf(arxiv.KindModel, "projection",
			"projector returned %d points for %d papers", len(coords), len(sortedIDs))
	}

	e := Entry{
		Version:   entryVersion,
		Key:       selKey,
		Selection: sel.Canonical(),
		Model:     model,
		Projector: c.projector.Name(),
		Params:    c.params,
		IDs:       sortedIDs,
		Coords:    coords,
		CreatedAt: time.Now().UTC(),
	}
	err = c.files.PutFunc(name, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(&e)
	})
	if err != nil {
		return nil, fmt.Errorf("saving projection: %w", err)
	}
	c.logger.Info("computed projection",
		zap.String("key", selKey),
		zap.Int("papers", len(sortedIDs)),
		zap.Duration("took", time.Since(start)))
	return &Result{Key: selKey, IDs: sortedIDs, Coords: coords}, nil
}

// lookup returns the entry stored under name if it decodes and covers
// exactly ids. Unreadable entries are removed.
func (c *Cache) lookup(name string, ids []string) (*Entry, bool) {
	data, err := c.files.Get(name)
	if err != nil {
		return nil, false
	}
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil || e.Version != entryVersion {
		c.logger.Warn("discarding unreadable projection entry", zap.String("entry", name), zap.Error(err))
		_ = c.files.Remove(name)
		return nil, false
	}
	if !slices.Equal(e.IDs, ids) || len(e.Coords) != len(ids) {
		c.logger.Warn("projection entry does not match corpus", zap.String("entry", name))
		return nil, false
	}
	return &e, true
}

// staleEntries counts other entries cached for the same selection key.
func (c *Cache) staleEntries(selKey, current string) int {
	matches, err := filepath.Glob(filepath.Join(c.files.Root(), selKey+"-*.gob"))
	if err != nil {
		return 0
	}
	n := 0
	for _, m := range matches {
		if filepath.Base(m) != current {
			n++
		}
	}
	return n
}

func firstDuplicate(sorted []string) string {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return sorted[i]
		}
	}
	return ""
}
