package session

import (
	"context"

	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/specialistvlad/paramgrid/internal/recalc"
	"github.com/specialistvlad/paramgrid/internal/schema"
)

// SetCount changes the instance count of the multi attribute template.
// Growing seeds the new indices from the template defaults, shrinking drops
// the highest indices together with their order entries. Surviving instances
// keep their state. The new key set is validated before anything changes.
func (s *Session) SetCount(ctx context.Context, template string, n int) (*recalc.Result, error) {
	defer s.flush()
	ctx = s.withLogger(ctx)

	multi, ok := s.schema.Attribute(template)
	if !ok {
		return nil, &engineerr.UnknownKeyError{Key: template}
	}
	if _, isMulti := multi.Multi(); !isMulti {
		return nil, engineerr.Schemaf(template, "parameter is not a multi attribute")
	}
	old, _ := s.store.Count(template)
	if n == old {
		return &recalc.Result{}, nil
	}

	counts := s.store.Counts()
	counts[template] = n
	if err := s.reconcile(counts); err != nil {
		return nil, err
	}
	s.countChanged(template, old, n)
	s.logger.Debug("Template count changed.", "template", template, "from", old, "to", n)
	return s.engine.RecomputeAll(ctx), nil
}

// reconcile moves the session to the key set resolved from counts. Nothing
// is touched when the key set does not resolve or its graph is cyclic.
func (s *Session) reconcile(counts map[string]int) error {
	resolved, err := s.schema.ResolveTemplates(counts)
	if err != nil {
		return err
	}
	g, err := schema.BuildGraph(resolved)
	if err != nil {
		return err
	}

	next := make(map[string]bool, len(resolved))
	for _, d := range resolved {
		next[d.Key] = true
	}
	var removed []string
	for _, d := range s.resolved {
		if !next[d.Key] {
			removed = append(removed, d.Key)
		}
	}

	s.store.Remove(removed...)
	orderLen := s.order.Len()
	s.order.Remove(removed...)
	moved := s.order.Len() != orderLen

	for _, d := range resolved {
		if s.store.Has(d.Key) {
			continue
		}
		st := s.initialState(d)
		s.store.Put(d.Key, st)
		if st.Active && s.order.Activate(d.Key) {
			moved = true
		}
	}
	for name, n := range counts {
		s.store.SetCount(name, n)
	}

	keys := make([]string, len(resolved))
	for i, d := range resolved {
		keys[i] = d.Key
	}
	s.store.Arrange(keys)
	s.setResolved(resolved)
	s.graph = g
	s.engine.Rebind(g, resolved)

	if moved {
		s.orderChanged()
	}
	return nil
}
