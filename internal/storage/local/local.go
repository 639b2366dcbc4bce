// Package local implements the storage.Store interface on the local
// filesystem. Keys are treated as relative paths under a root directory.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ecopipe-systems/ecopipe/internal/storage"
)

// Compile-time interface satisfaction check.
var _ storage.Store = (*Store)(nil)

// Store maps logical keys to files under a root directory.
type Store struct {
	root string
}

// New creates a filesystem-backed store rooted at dir.
func New(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) resolve(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Write persists bytes at the given key, creating parent directories.
func (s *Store) Write(_ context.Context, key string, data []byte) (string, error) {
	path := s.resolve(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating directory for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	return path, nil
}

// Read returns the bytes stored at the key.
func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// List walks the directory tree under prefix and returns logical keys.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	base := s.resolve(prefix)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}

	var keys []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, strings.ReplaceAll(rel, string(os.PathSeparator), "/"))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}
	return keys, nil
}
