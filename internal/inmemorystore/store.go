// Package inmemorystore provides an ephemeral, thread-safe implementation of
// statestore.Store.
//
// Entries are kept in their encoded form, so a loaded context never aliases
// the one that was saved. Nothing survives the process.
package inmemorystore

import (
	"context"
	"sort"
	"sync"

	"github.com/specialistvlad/paramgrid/internal/statestore"
)

// Store keeps saved contexts in a sync.Map keyed by name. Each name is
// written independently, so there is no global lock.
type Store struct {
	entries sync.Map // name -> []byte
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Save encodes c and stores it under name.
func (s *Store) Save(ctx context.Context, name string, c *statestore.SavedContext) error {
	if err := statestore.CheckName(name); err != nil {
		return err
	}
	data, err := statestore.Marshal(c)
	if err != nil {
		return err
	}
	s.entries.Store(name, data)
	return nil
}

// Load decodes the entry saved under name.
func (s *Store) Load(ctx context.Context, name string) (*statestore.SavedContext, error) {
	data, ok := s.entries.Load(name)
	if !ok {
		return nil, statestore.ErrNotFound
	}
	return statestore.Unmarshal(data.([]byte))
}

// List returns the saved names in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	names := []string{}
	s.entries.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names, nil
}

// Delete removes the entry saved under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if _, loaded := s.entries.LoadAndDelete(name); !loaded {
		return statestore.ErrNotFound
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
