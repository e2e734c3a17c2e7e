// Package statestore defines the persisted layout of a configuration context
// and the interface of the backends that keep it.
//
// # Why a separate store
//
// The parameter store of a live context (internal/store) is ephemeral and
// owned by one session. What survives a restart is much smaller: the value
// and flags of every parameter, the active order and the template counts.
// Descriptors are never persisted; they are rebuilt from the configuration.
//
// Implementations:
//   - internal/inmemorystore: sync.Map, for tests and single runs
//   - internal/filestore: one YAML document per saved context
//   - internal/badgerstore: an embedded badger database
package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"
)

// ErrNotFound is returned by Load and Delete for unknown names.
var ErrNotFound = errors.New("saved context not found")

// SavedValue is the persisted state of one parameter.
type SavedValue struct {
	Value  cty.Value
	Auto   bool
	Active bool
}

// SavedContext is the persisted state of one context.
type SavedContext struct {
	Tab    string
	Values map[string]SavedValue
	// Order is the active order at save time.
	Order []string
	// Counts holds the instance count of every multi attribute.
	Counts  map[string]int
	SavedAt time.Time
}

// Store keeps saved contexts under caller-chosen names.
//
// Implementations MUST be safe for concurrent use.
type Store interface {
	// Save writes c under name, replacing any previous entry.
	Save(ctx context.Context, name string, c *SavedContext) error
	// Load returns the context saved under name or ErrNotFound.
	Load(ctx context.Context, name string) (*SavedContext, error)
	// List returns the saved names in sorted order.
	List(ctx context.Context) ([]string, error)
	// Delete removes the entry saved under name or returns ErrNotFound.
	Delete(ctx context.Context, name string) error
	// Close releases the resources held by the store.
	Close() error
}

// CheckName reports whether name can be used as a saved context name. Names
// are non-empty and made of letters, digits, '-', '_' and '.', and never
// start with a dot.
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("saved context name is empty")
	}
	if name[0] == '.' {
		return fmt.Errorf("saved context name %q starts with a dot", name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("saved context name %q contains %q", name, r)
		}
	}
	return nil
}
