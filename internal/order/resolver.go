// Package order maintains the user-ordered list of active parameters that an
// export walks.
package order

import (
	"slices"
	"sort"

	"github.com/specialistvlad/paramgrid/internal/engineerr"
)

// Resolver holds the active keys in user-committed order. Newly activated
// keys are appended; deactivated keys are removed and their position is
// forgotten.
type Resolver struct {
	keys []string
}

// New creates a resolver seeded with keys. Duplicates are dropped.
func New(keys ...string) *Resolver {
	r := &Resolver{}
	for _, k := range keys {
		r.Activate(k)
	}
	return r
}

// Activate appends key if it is not already present and reports whether the
// order changed.
func (r *Resolver) Activate(key string) bool {
	if slices.Contains(r.keys, key) {
		return false
	}
	r.keys = append(r.keys, key)
	return true
}

// Deactivate removes key and reports whether the order changed.
func (r *Resolver) Deactivate(key string) bool {
	i := slices.Index(r.keys, key)
	if i < 0 {
		return false
	}
	r.keys = slices.Delete(r.keys, i, i+1)
	return true
}

// Remove drops every key in keys, ignoring the ones not present.
func (r *Resolver) Remove(keys ...string) {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	r.keys = slices.DeleteFunc(r.keys, func(k string) bool { return drop[k] })
}

// Contains reports whether key is in the active set.
func (r *Resolver) Contains(key string) bool { return slices.Contains(r.keys, key) }

// Len returns the size of the active set.
func (r *Resolver) Len() int { return len(r.keys) }

// Order returns a copy of the current order.
func (r *Resolver) Order() []string { return slices.Clone(r.keys) }

// Reorder replaces the order with seq, which must be a permutation of the
// current active set. On error the order is left unchanged.
func (r *Resolver) Reorder(seq []string) error {
	current := make(map[string]bool, len(r.keys))
	for _, k := range r.keys {
		current[k] = true
	}

	var mismatch engineerr.OrderMismatchError
	seen := make(map[string]bool, len(seq))
	for _, k := range seq {
		switch {
		case seen[k]:
			if !slices.Contains(mismatch.Duplicates, k) {
				mismatch.Duplicates = append(mismatch.Duplicates, k)
			}
		case !current[k]:
			mismatch.Unexpected = append(mismatch.Unexpected, k)
		}
		seen[k] = true
	}
	for _, k := range r.keys {
		if !seen[k] {
			mismatch.Missing = append(mismatch.Missing, k)
		}
	}
	if len(mismatch.Missing)+len(mismatch.Unexpected)+len(mismatch.Duplicates) > 0 {
		sort.Strings(mismatch.Missing)
		sort.Strings(mismatch.Unexpected)
		sort.Strings(mismatch.Duplicates)
		return &mismatch
	}

	r.keys = slices.Clone(seq)
	return nil
}

// Restore rebuilds the order for the active keys in active. Keys of saved
// that are active keep their saved relative order; active keys absent from
// saved follow in the order given.
func (r *Resolver) Restore(saved, active []string) {
	isActive := make(map[string]bool, len(active))
	for _, k := range active {
		isActive[k] = true
	}
	r.keys = r.keys[:0]
	for _, k := range saved {
		if isActive[k] && !slices.Contains(r.keys, k) {
			r.keys = append(r.keys, k)
		}
	}
	for _, k := range active {
		if !slices.Contains(r.keys, k) {
			r.keys = append(r.keys, k)
		}
	}
}
