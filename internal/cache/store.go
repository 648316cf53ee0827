// Package cache provides a flat, filesystem-backed artifact cache.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMinSize is the smallest file considered a usable cache entry.
const DefaultMinSize = 1024

// Cache errors.
var (
	ErrInvalidName = errors.New("invalid cache entry name")
	ErrNotCached   = errors.New("entry not cached")
)

// Store keeps named binary artifacts in a single directory.
// Entries are never removed by this package; Clear truncates instead.
type Store struct {
	dir string
}

// NewStore creates the cache directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty cache directory", ErrInvalidName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
	}

	return &Store{dir: dir}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path derives the on-disk path of an entry. Names are flat: no separators.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return filepath.Join(s.dir, name), nil
}

// IsCached reports whether a file of at least minSize bytes exists for name.
// Smaller files are treated as absent.
func (s *Store) IsCached(name string, minSize int64) bool {
	size, err := s.Size(name)
	if err != nil {
		return false
	}

	return size >= minSize
}

// Size returns the byte size of an entry.
func (s *Store) Size(name string) (int64, error) {
	path, err := s.Path(name)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotCached, name)
		}

		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s is not a regular file", ErrNotCached, name)
	}

	return info.Size(), nil
}

// Save writes the whole entry. The data lands in a temp file that is renamed
// into place, so concurrent readers see either the old or the new content.
func (s *Store) Save(name string, data []byte) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}

	return nil
}

// Read returns the whole entry.
func (s *Store) Read(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotCached, name)
		}

		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return data, nil
}

// Clear truncates an entry to zero bytes, which IsCached then reports as absent.
func (s *Store) Clear(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("failed to clear %s: %w", name, err)
	}

	return nil
}

// List returns the names of all regular entries, skipping in-flight temp files.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	var names []string

	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		names = append(names, e.Name())
	}

	return names, nil
}
