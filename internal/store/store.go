// Package store holds the mutable state of one configuration context: the
// value and flags of every resolved parameter and the instance count of every
// multi attribute.
//
// The store is a plain container. It enforces no business rules (auto locks,
// bounds, capabilities); those belong to the session that owns it. It is not
// safe for concurrent use: a context has one logical writer.
package store

import (
	"fmt"
	"slices"

	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/zclconf/go-cty/cty"
)

// Source records who produced the current value of a parameter.
type Source int

const (
	SourceDefault Source = iota
	SourceManual
	SourceComputed
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceManual:
		return "manual"
	case SourceComputed:
		return "computed"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// State is the live state of one parameter.
type State struct {
	Value  cty.Value
	Auto   bool
	Active bool
	Source Source

	// Stale is set on a manual parameter whose inputs changed after its value
	// was last set.
	Stale bool
	// OutOfBounds is set when a computed value violates the numeric bounds.
	OutOfBounds bool
	// ComputeErr holds the last rule failure, nil after a successful evaluation.
	ComputeErr error
}

// Observer is notified after every change of a parameter state. old is the
// zero State for a newly inserted key and new is the zero State for a removed
// one.
type Observer func(key string, old, new State)

// Store is the parameter store of one context.
type Store struct {
	states    map[string]*State
	keys      []string
	counts    map[string]int
	observers []Observer
}

// New creates an empty store.
func New() *Store {
	return &Store{
		states: make(map[string]*State),
		counts: make(map[string]int),
	}
}

// Observe registers fn to be called after every state change.
func (s *Store) Observe(fn Observer) {
	s.observers = append(s.observers, fn)
}

func (s *Store) notify(key string, old, new State) {
	for _, fn := range s.observers {
		fn(key, old, new)
	}
}

// Has reports whether key is part of the store.
func (s *Store) Has(key string) bool {
	_, ok := s.states[key]
	return ok
}

// Get returns the current value of key.
func (s *Store) Get(key string) (cty.Value, error) {
	st, ok := s.states[key]
	if !ok {
		return cty.NilVal, &engineerr.UnknownKeyError{Key: key}
	}
	return st.Value, nil
}

// State returns a copy of the state of key.
func (s *Store) State(key string) (State, error) {
	st, ok := s.states[key]
	if !ok {
		return State{}, &engineerr.UnknownKeyError{Key: key}
	}
	return *st, nil
}

// Put inserts or replaces the state of key. New keys are appended to the key
// order.
func (s *Store) Put(key string, st State) {
	prev, ok := s.states[key]
	var old State
	if ok {
		old = *prev
	} else {
		s.keys = append(s.keys, key)
	}
	next := st
	s.states[key] = &next
	s.notify(key, old, next)
}

// Update applies fn to the state of key.
func (s *Store) Update(key string, fn func(st *State)) error {
	st, ok := s.states[key]
	if !ok {
		return &engineerr.UnknownKeyError{Key: key}
	}
	old := *st
	fn(st)
	s.notify(key, old, *st)
	return nil
}

// Remove deletes keys from the store. Unknown keys are ignored.
func (s *Store) Remove(keys ...string) {
	for _, key := range keys {
		st, ok := s.states[key]
		if !ok {
			continue
		}
		delete(s.states, key)
		s.keys = slices.DeleteFunc(s.keys, func(k string) bool { return k == key })
		s.notify(key, *st, State{})
	}
}

// Keys returns the keys in insertion order.
func (s *Store) Keys() []string { return slices.Clone(s.keys) }

// Len returns the number of parameters.
func (s *Store) Len() int { return len(s.keys) }

// Arrange reorders the keys to follow order. Keys missing from order keep
// their relative position after the listed ones.
func (s *Store) Arrange(order []string) {
	pos := make(map[string]int, len(order))
	for i, k := range order {
		pos[k] = i
	}
	slices.SortStableFunc(s.keys, func(a, b string) int {
		pa, okA := pos[a]
		pb, okB := pos[b]
		switch {
		case okA && okB:
			return pa - pb
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})
}

// SetCount records the instance count of a multi attribute.
func (s *Store) SetCount(template string, n int) { s.counts[template] = n }

// Count returns the instance count of a multi attribute.
func (s *Store) Count(template string) (int, bool) {
	n, ok := s.counts[template]
	return n, ok
}

// Counts returns a copy of all instance counts.
func (s *Store) Counts() map[string]int {
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Snapshot returns a read-only view of the store for calculation rules. The
// view is live: it reflects later writes to the store.
func (s *Store) Snapshot() Snapshot { return Snapshot{s: s} }

// Snapshot implements calc.Snapshot on top of a Store.
type Snapshot struct {
	s *Store
}

func (v Snapshot) Value(key string) (cty.Value, bool) {
	st, ok := v.s.states[key]
	if !ok {
		return cty.NilVal, false
	}
	return st.Value, true
}

func (v Snapshot) Count(template string) (int, bool) { return v.s.Count(template) }

// Equal reports whether two parameter values are the same. Numbers compare by
// value regardless of how they were constructed.
func Equal(a, b cty.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if !a.IsWhollyKnown() || !b.IsWhollyKnown() {
		return false
	}
	if !a.Type().Equals(b.Type()) {
		return false
	}
	return a.Equals(b).True()
}
