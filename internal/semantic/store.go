package semantic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

// Embedder computes document embeddings in batches.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimensions() int
	BatchSize() int
}

// SyncProgress is one progress update from Sync. Current counts the
// partition's papers that have committed embeddings.
type SyncProgress struct {
	Partition arxiv.PartitionKey
	Current   int
	Total     int
	Skipped   bool
}

// ProgressReporter receives progress updates during Sync.
type ProgressReporter interface {
	// OnProgress is called after every committed batch, or once when the
	// partition needs no work.
	OnProgress(p SyncProgress)
}

// ProgressFunc is a function adapter for ProgressReporter.
type ProgressFunc func(p SyncProgress)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(p SyncProgress) {
	f(p)
}

const (
	lockSuffix = ".lock"

	// DefaultLockTimeout is how long Sync waits for another writer.
	DefaultLockTimeout = 2 * time.Minute

	lockPollInterval = 100 * time.Millisecond
)

// Store is the on-disk embedding store, one file per partition under root
// at YYYY/MM/<category>.gob. Every arxiv_id is embedded at most once; Sync
// only computes what is missing and commits batch by batch.
type Store struct {
	root        string
	embedder    Embedder
	logger      *zap.Logger
	lockTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithLockTimeout bounds how long Sync waits for a concurrent writer.
func WithLockTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, embedder Embedder, opts ...StoreOption) *Store {
	s := &Store{
		root:        dir,
		embedder:    embedder,
		logger:      zap.NewNop(),
		lockTimeout: DefaultLockTimeout,
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path is where key's embeddings live.
func (s *Store) Path(key arxiv.PartitionKey) string {
	return filepath.Join(s.root, key.LocalPath(FileExt))
}

// Load returns the committed embeddings of a partition. A partition never
// embedded yields an empty index. Embeddings computed with a different model
// are a ModelError.
func (s *Store) Load(key arxiv.PartitionKey) (*PartitionIndex, error) {
	idx, err := LoadIndex(s.Path(key))
	if errors.Is(err, ErrIndexNotFound) {
		return NewPartitionIndex(key, s.embedder.ModelName(), s.embedder.Dimensions()), nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkModel(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *Store) checkModel(idx *PartitionIndex) error {
	if idx.ModelName != s.embedder.ModelName() || idx.Dimensions != s.embedder.Dimensions() {
		return arxiv.Errorf(arxiv.KindModel, "semantic.load",
			"embeddings for %s were computed with %s (%d dims); current model is %s (%d dims)",
			idx.Partition, idx.ModelName, idx.Dimensions, s.embedder.ModelName(), s.embedder.Dimensions())
	}
	return nil
}

// Sync embeds every paper of the partition that has no committed embedding.
// Batches are committed one at a time with an atomic file replace, so an
// interrupted Sync keeps all earlier batches and a rerun computes only what
// is still missing. A model failure commits nothing from the failing batch.
func (s *Store) Sync(ctx context.Context, key arxiv.PartitionKey, papers []arxiv.Paper, reporter ProgressReporter) (*SyncStats, error) {
	start := time.Now()
	unlock, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	stats := &SyncStats{Partition: key}
	idx, err := s.Load(key)
	if arxiv.IsCorruptCache(err) {
		s.logger.Warn("embedding file unreadable, recomputing",
			zap.String("partition", key.String()), zap.Error(err))
		if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing corrupt embeddings: %w", err)
		}
		idx, err = NewPartitionIndex(key, s.embedder.ModelName(), s.embedder.Dimensions()), nil
		stats.Healed = true
	}
	if err != nil {
		return nil, err
	}

	pending := make([]arxiv.Paper, 0, len(papers))
	seen := make(map[string]bool, len(papers))
	for _, p := range papers {
		if seen[p.ArxivID] {
			continue
		}
		seen[p.ArxivID] = true
		if !idx.HasPaper(p.ArxivID) {
			pending = append(pending, p)
		}
	}
	total := len(seen)
	stats.Papers = total
	stats.Existing = total - len(pending)

	report := func(current int, skipped bool) {
		if reporter != nil {
			reporter.OnProgress(SyncProgress{Partition: key, Current: current, Total: total, Skipped: skipped})
		}
	}

	if len(pending) == 0 {
		stats.Skipped = true
		stats.Duration = time.Since(start)
		report(total, true)
		s.logger.Debug("embeddings up to date", zap.String("partition", key.String()), zap.Int("papers", total))
		return stats, nil
	}

	done := stats.Existing
	report(done, false)
	batchSize := s.embedder.BatchSize()
	for b := 0; b < len(pending); b += batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		batch := pending[b:min(b+batchSize, len(pending))]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.EmbeddingText()
		}

		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("embedding %s batch %d: %w", key, stats.Batches+1, err)
		}
		if len(vecs) != len(batch) {
			return stats, arxiv.Errorf(arxiv.KindModel, "semantic.sync",
				"model returned %d embeddings for %d texts", len(vecs), len(batch))
		}

		next := idx.clone()
		for i, p := range batch {
			if err := next.AddEmbedding(p.ArxivID, vecs[i]); err != nil {
				return stats, arxiv.Wrap(arxiv.KindModel, "semantic.sync", err)
			}
		}
		next.UpdatedAt = time.Now().UTC()
		if err := next.Save(s.Path(key)); err != nil {
			return stats, err
		}
		idx = next

		stats.Batches++
		stats.Embedded += len(batch)
		done += len(batch)
		report(done, false)
		s.logger.Debug("committed embedding batch",
			zap.String("partition", key.String()),
			zap.Int("batch", stats.Batches),
			zap.Int("papers", len(batch)))
	}

	stats.Duration = time.Since(start)
	s.logger.Info("embedded partition",
		zap.String("partition", key.String()),
		zap.Int("new", stats.Embedded),
		zap.Int("existing", stats.Existing),
		zap.Duration("took", stats.Duration))
	return stats, nil
}

// clone copies the index so a failed batch never touches the committed one.
func (idx *PartitionIndex) clone() *PartitionIndex {
	c := *idx
	c.Embeddings = make(map[string][]float32, len(idx.Embeddings))
	for id, v := range idx.Embeddings {
		c.Embeddings[id] = v
	}
	return &c
}

// lock serializes writers of one partition, within this process and across
// processes sharing the store.
func (s *Store) lock(ctx context.Context, key arxiv.PartitionKey) (func(), error) {
	s.mu.Lock()
	m, ok := s.locks[key.String()]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key.String()] = m
	}
	s.mu.Unlock()
	m.Lock()

	path := s.Path(key) + lockSuffix
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		m.Unlock()
		return nil, fmt.Errorf("creating embedding directory: %w", err)
	}
	fl := flock.New(path)
	deadline := time.Now().Add(s.lockTimeout)
	for {
		locked, err := fl.TryLock()
		if err != nil {
			m.Unlock()
			return nil, fmt.Errorf("locking %s: %w", key, err)
		}
		if locked {
			return func() {
				_ = fl.Unlock()
				m.Unlock()
			}, nil
		}
		if time.Now().After(deadline) {
			m.Unlock()
			return nil, fmt.Errorf("embeddings for %s are being written by another process (lock: %s)", key, path)
		}
		select {
		case <-ctx.Done():
			m.Unlock()
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}
