// Package diskcache is the single write discipline for every durable file the
// explorer produces: downloaded partitions, embedding files, projection
// entries, and cached listings. Writes go to a temp file in the destination
// directory, are synced, and then atomically renamed over the target, so a
// reader sees either the previous complete file or the new complete file.
package diskcache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotExist is returned by Get for keys with no committed file.
var ErrNotExist = errors.New("cache entry does not exist")

// tempSuffix marks in-flight writes. Such files are never read and are
// removed by Sweep.
const tempSuffix = ".tmp"

// Store is a directory of atomically written files addressed by relative keys.
type Store struct {
	root string
}

// New returns a store rooted at dir. The directory is created lazily.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's directory.
func (s *Store) Root() string { return s.root }

// Path returns the absolute path for key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Get reads the committed file for key.
func (s *Store) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// PutFunc atomically replaces the file for key with whatever write produces.
// If write fails, the previous file (if any) is untouched.
func (s *Store) PutFunc(key string, write func(w io.Writer) error) error {
	return WriteFile(s.Path(key), write)
}

// Remove deletes the committed file for key. Removing a missing key is not
// an error.
func (s *Store) Remove(key string) error {
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// Sweep removes temp files left behind by interrupted writes and returns how
// many were removed. Temp files modified within minAge may belong to a write
// still in flight and are kept.
func (s *Store) Sweep(minAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-minAge)
	removed := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), tempSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

// WriteFile atomically replaces path with the output of write.
func WriteFile(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := f.Name()

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
