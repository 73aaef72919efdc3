// Package config resolves the data directory layout and the global
// configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lmmx/arxiv-explorer/internal/diskcache"
)

// Data directory layout.
const (
	DataDirName    = "axp"
	PartitionsDir  = "partitions"
	EmbeddingsDir  = "embeddings"
	ProjectionsDir = "umap"
	CacheDir       = "cache"
	CatalogFile    = "catalog.db"
	SubjectsFile   = "subject_codes.json"
)

// StaleTempAge is how old a temp file must be before SweepTemp treats it as
// left behind by a crashed write.
const StaleTempAge = time.Hour

// PartitionsPath returns the directory of downloaded parquet partitions.
func PartitionsPath(root string) string {
	return filepath.Join(root, PartitionsDir)
}

// EmbeddingsPath returns the directory of per-partition embedding files.
func EmbeddingsPath(root string) string {
	return filepath.Join(root, EmbeddingsDir)
}

// ProjectionsPath returns the projection cache directory.
func ProjectionsPath(root string) string {
	return filepath.Join(root, ProjectionsDir)
}

// CachePath returns the directory of small bookkeeping files.
func CachePath(root string) string {
	return filepath.Join(root, CacheDir)
}

// CatalogPath returns the path to the partition catalog database.
func CatalogPath(root string) string {
	return filepath.Join(root, CacheDir, CatalogFile)
}

// SubjectsPath returns the path to the cached subject code list.
func SubjectsPath(root string) string {
	return filepath.Join(root, CacheDir, SubjectsFile)
}

// DefaultDataDir is $XDG_DATA_HOME/axp, or ~/.local/share/axp.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DataDirName
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, DataDirName)
}

// EnsureLayout creates the data directory tree under root.
func EnsureLayout(root string) error {
	for _, dir := range []string{
		PartitionsPath(root),
		EmbeddingsPath(root),
		ProjectionsPath(root),
		CachePath(root),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// SweepTemp removes temp files older than minAge from the partition,
// embedding and projection directories and returns how many it removed.
func SweepTemp(root string, minAge time.Duration) (int, error) {
	total := 0
	for _, dir := range []string{
		PartitionsPath(root),
		EmbeddingsPath(root),
		ProjectionsPath(root),
	} {
		n, err := diskcache.New(dir).Sweep(minAge)
		total += n
		if err != nil {
			return total, fmt.Errorf("sweeping %s: %w", dir, err)
		}
	}
	return total, nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
