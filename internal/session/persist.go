package session

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/specialistvlad/paramgrid/internal/recalc"
	"github.com/specialistvlad/paramgrid/internal/statestore"
	"github.com/specialistvlad/paramgrid/internal/store"
)

// Save captures the persisted layout of the session.
func (s *Session) Save() *statestore.SavedContext {
	saved := &statestore.SavedContext{
		Tab:     s.schema.Tab,
		Values:  make(map[string]statestore.SavedValue, len(s.resolved)),
		Order:   s.order.Order(),
		Counts:  s.store.Counts(),
		SavedAt: time.Now().UTC(),
	}
	for _, d := range s.resolved {
		st, err := s.store.State(d.Key)
		if err != nil {
			continue
		}
		saved.Values[d.Key] = statestore.SavedValue{Value: st.Value, Auto: st.Auto, Active: st.Active}
	}
	return saved
}

// Restore loads a saved layout into the session. Template counts are applied
// first; values and flags of keys that no longer exist or no longer fit their
// descriptor are skipped. Auto parameters are recomputed afterwards.
func (s *Session) Restore(ctx context.Context, saved *statestore.SavedContext) (*recalc.Result, error) {
	defer s.flush()
	ctx = s.withLogger(ctx)

	if saved == nil {
		return nil, fmt.Errorf("saved context is nil")
	}
	if saved.Tab != "" && saved.Tab != s.schema.Tab {
		return nil, fmt.Errorf("saved context belongs to tab %q, not %q", saved.Tab, s.schema.Tab)
	}

	counts := s.store.Counts()
	for name, n := range saved.Counts {
		if _, ok := counts[name]; !ok {
			s.logger.Warn("Ignoring saved count of unknown multi attribute.", "template", name)
			continue
		}
		counts[name] = n
	}
	if err := s.reconcile(counts); err != nil {
		return nil, fmt.Errorf("failed to restore template counts: %w", err)
	}

	var active []string
	for _, d := range s.resolved {
		sv, ok := saved.Values[d.Key]
		if !ok {
			if st, err := s.store.State(d.Key); err == nil && st.Active {
				active = append(active, d.Key)
			}
			continue
		}
		value, err := d.Coerce(sv.Value)
		if err != nil {
			s.logger.Warn("Ignoring saved value that no longer fits.", "key", d.Key, "error", err)
			value, _ = s.store.Get(d.Key)
		}
		auto := sv.Auto && d.AutoCapable
		isActive := sv.Active && d.ActiveCapable
		source := store.SourceManual
		if auto {
			source = store.SourceComputed
		}
		_ = s.store.Update(d.Key, func(st *store.State) {
			st.Value = value
			st.Auto = auto
			st.Active = isActive
			st.Source = source
			st.Stale = false
			st.ComputeErr = nil
			st.OutOfBounds = !d.InBounds(value)
		})
		if isActive {
			active = append(active, d.Key)
		}
	}

	before := s.order.Order()
	s.order.Restore(saved.Order, active)
	if !slices.Equal(before, s.order.Order()) {
		s.orderChanged()
	}

	s.logger.Debug("Session restored.", "values", len(saved.Values), "active", len(active))
	return s.engine.RecomputeAll(ctx), nil
}
