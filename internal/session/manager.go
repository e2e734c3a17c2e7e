package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/config"
	"github.com/specialistvlad/paramgrid/internal/ctxlog"
	"github.com/specialistvlad/paramgrid/internal/engineerr"
	"github.com/specialistvlad/paramgrid/internal/schema"
	"golang.org/x/sync/errgroup"
)

// Manager owns the sessions of many tabs and serialises access to each of
// them. Sessions of different tabs share no mutable state and may be used
// concurrently.
type Manager struct {
	registry *calc.Registry
	opts     []Option

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	session *Session
}

// NewManager creates a manager. opts are applied to every session it builds.
func NewManager(reg *calc.Registry, opts ...Option) *Manager {
	return &Manager{
		registry: reg,
		opts:     opts,
		sessions: make(map[string]*entry),
	}
}

// LoadAll loads the schema of every tab of model and activates one session
// per tab. Tabs are built concurrently; the first failure aborts the load and
// no session of model is registered.
func (m *Manager) LoadAll(ctx context.Context, model *config.Model) error {
	logger := ctxlog.FromContext(ctx)
	if model == nil {
		return fmt.Errorf("config model is nil")
	}

	built := make([]*Session, len(model.Tabs))
	g, gctx := errgroup.WithContext(ctx)
	for i, tab := range model.Tabs {
		if tab == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := schema.Load(gctx, tab, m.registry)
			if err != nil {
				return fmt.Errorf("tab %q: %w", tab.ID, err)
			}
			sess, err := New(gctx, s, m.opts...)
			if err != nil {
				return fmt.Errorf("tab %q: %w", tab.ID, err)
			}
			built[i] = sess
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range built {
		if sess == nil {
			continue
		}
		m.sessions[sess.Tab()] = &entry{session: sess}
	}
	logger.Debug("Sessions loaded.", "tabs", len(built))
	return nil
}

// Add registers an already built session, replacing any session of the
// same tab.
func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Tab()] = &entry{session: s}
}

// Remove tears down the session of tab.
func (m *Manager) Remove(tab string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tab)
}

// Tabs returns the tab ids with a session, sorted.
func (m *Manager) Tabs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tabs := make([]string, 0, len(m.sessions))
	for tab := range m.sessions {
		tabs = append(tabs, tab)
	}
	sort.Strings(tabs)
	return tabs
}

// Do runs fn with exclusive access to the session of tab.
func (m *Manager) Do(tab string, fn func(*Session) error) error {
	m.mu.RLock()
	e, ok := m.sessions[tab]
	m.mu.RUnlock()
	if !ok {
		return &engineerr.UnknownKeyError{Key: tab}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}
