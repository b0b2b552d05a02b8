// Package file discovers ceilometer input files in a directory.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Extensions lists the recognized input suffixes, compared case-insensitively.
var Extensions = []string{".dat", ".his"}

// IsInput reports whether name has a recognized input suffix.
func IsInput(name string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

// Source lists input files in one directory, in name order. With Unseen it
// remembers what it has handed out so a rescan only yields new files.
type Source struct {
	dir    string
	unseen bool

	mu   sync.Mutex
	seen map[string]bool
}

// NewSource creates a Source for dir. When unseen is true each file is
// listed at most once over the Source's lifetime.
func NewSource(dir string, unseen bool) *Source {
	return &Source{dir: dir, unseen: unseen, seen: make(map[string]bool)}
}

// List returns the input files to process.
func (s *Source) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list input dir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsInput(e.Name()) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if s.unseen {
			if s.seen[path] {
				continue
			}
			s.seen[path] = true
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Forget makes path eligible for listing again, e.g. after a failure that
// may be transient.
func (s *Source) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, path)
}
