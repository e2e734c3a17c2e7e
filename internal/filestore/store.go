// Package filestore keeps saved contexts as YAML documents, one file per
// name, in a single directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/specialistvlad/paramgrid/internal/ctxlog"
	"github.com/specialistvlad/paramgrid/internal/statestore"
)

const ext = ".yaml"

// Store is a directory of saved contexts.
type Store struct {
	dir string
	// mu serialises writers; readers never observe a partial file because
	// writes go through a rename.
	mu sync.Mutex
}

// New opens dir, creating it when needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+ext)
}

// Save writes c to <dir>/<name>.yaml.
func (s *Store) Save(ctx context.Context, name string, c *statestore.SavedContext) error {
	if err := statestore.CheckName(name); err != nil {
		return err
	}
	data, err := statestore.Marshal(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".save-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	ctxlog.FromContext(ctx).Debug("Saved context", "name", name, "tab", c.Tab, "dir", s.dir)
	return nil
}

// Load reads <dir>/<name>.yaml.
func (s *Store) Load(ctx context.Context, name string) (*statestore.SavedContext, error) {
	if err := statestore.CheckName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, statestore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	c, err := statestore.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path(name), err)
	}
	return c, nil
}

// List returns the names of the YAML files in the directory.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ext)
		if e.IsDir() || !ok || statestore.CheckName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes <dir>/<name>.yaml.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := statestore.CheckName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return statestore.ErrNotFound
	}
	return err
}

// Close is a no-op; files are closed after every operation.
func (s *Store) Close() error { return nil }
