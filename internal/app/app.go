package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/specialistvlad/paramgrid/internal/badgerstore"
	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/specialistvlad/paramgrid/internal/config"
	"github.com/specialistvlad/paramgrid/internal/ctxlog"
	"github.com/specialistvlad/paramgrid/internal/filestore"
	"github.com/specialistvlad/paramgrid/internal/hcl"
	"github.com/specialistvlad/paramgrid/internal/inmemorystore"
	"github.com/specialistvlad/paramgrid/internal/metrics"
	"github.com/specialistvlad/paramgrid/internal/notify"
	"github.com/specialistvlad/paramgrid/internal/session"
	"github.com/specialistvlad/paramgrid/internal/statestore"
	"github.com/specialistvlad/paramgrid/internal/yamlconfig"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	loader   config.Loader
	registry *calc.Registry
	bus      *notify.Bus
	metrics  *metrics.Recorder
	states   statestore.Store

	mu      sync.RWMutex
	model   *config.Model
	manager *session.Manager

	httpServer *http.Server
}

// NewApp loads the definitions and activates one session per tab. loader
// may be nil, in which case the loader is chosen from cfg.Format. Rule
// modules default to the built-in ones.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, loader config.Loader, modules ...calc.Module) (*App, error) {
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	if loader == nil {
		loader = NewLoader(cfg.Format)
	}
	if len(modules) == 0 {
		modules = coreModules
	}
	reg := calc.NewRegistry(modules...)
	logger.Debug("Rule modules registered.", "count", len(modules), "rules", reg.IDs())

	recorder := metrics.New()
	a := &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		loader:   loader,
		registry: reg,
		bus:      notify.NewBus(recorder),
		metrics:  recorder,
	}

	if err := a.Reload(ctx); err != nil {
		return nil, err
	}

	states, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.states = states
	return a, nil
}

// NewLoader returns the loader for format. FormatAuto reads both HCL and
// YAML files.
func NewLoader(format string) config.Loader {
	switch format {
	case FormatHCL:
		return hcl.NewLoader()
	case FormatYAML:
		return yamlconfig.NewLoader()
	}
	return multiLoader{hcl.NewLoader(), yamlconfig.NewLoader()}
}

// multiLoader merges the tabs found by several loaders.
type multiLoader []config.Loader

func (m multiLoader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	merged := &config.Model{}
	for _, l := range m {
		model, err := l.Load(ctx, paths...)
		if err != nil {
			return nil, err
		}
		for _, tab := range model.Tabs {
			if _, dup := merged.Tab(tab.ID); dup {
				return nil, fmt.Errorf("tab %q is defined more than once", tab.ID)
			}
			merged.Tabs = append(merged.Tabs, tab)
		}
	}
	return merged, nil
}

// OpenStore opens the saved state backend named by cfg.
func OpenStore(cfg *Config, logger *slog.Logger) (statestore.Store, error) {
	switch cfg.StoreBackend {
	case BackendFile:
		return filestore.New(cfg.StateDir)
	case BackendBadger:
		return badgerstore.Open(badgerstore.Config{
			Path:       filepath.Join(cfg.StateDir, "badger"),
			SyncWrites: true,
			Logger:     logger.With("component", "badger"),
		})
	case BackendMemory, "":
		return inmemorystore.New(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// Reload reads the definitions again and replaces every session. On failure
// the running sessions are kept.
func (a *App) Reload(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	model, err := a.loader.Load(ctx, a.cfg.ConfigPaths...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	manager := session.NewManager(a.registry, session.WithBus(a.bus), session.WithMetrics(a.metrics))
	if err := manager.LoadAll(ctx, model); err != nil {
		return fmt.Errorf("failed to activate configuration: %w", err)
	}

	a.mu.Lock()
	a.model = model
	a.manager = manager
	a.mu.Unlock()
	a.logger.Info("Configuration loaded.", "tabs", manager.Tabs())
	return nil
}

// Manager returns the current session manager. It changes on Reload.
func (a *App) Manager() *session.Manager {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.manager
}

// Model returns the current definition model.
func (a *App) Model() *config.Model {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// Registry returns the application's rule registry.
func (a *App) Registry() *calc.Registry { return a.registry }

// Bus returns the bus every session publishes on.
func (a *App) Bus() *notify.Bus { return a.bus }

// Metrics returns the application's metrics recorder.
func (a *App) Metrics() *metrics.Recorder { return a.metrics }

// States returns the saved state store.
func (a *App) States() statestore.Store { return a.states }

// Logger returns the application's logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Save stores the state of tab under name.
func (a *App) Save(ctx context.Context, tab, name string) error {
	var saved *statestore.SavedContext
	err := a.Manager().Do(tab, func(s *session.Session) error {
		saved = s.Save()
		return nil
	})
	if err != nil {
		return err
	}
	return a.states.Save(ctx, name, saved)
}

// Restore loads the state saved under name into the session of its tab.
func (a *App) Restore(ctx context.Context, name string) (string, error) {
	saved, err := a.states.Load(ctx, name)
	if err != nil {
		return "", err
	}
	ctx = ctxlog.WithLogger(ctx, a.logger)
	err = a.Manager().Do(saved.Tab, func(s *session.Session) error {
		_, err := s.Restore(ctx, saved)
		return err
	})
	return saved.Tab, err
}

// Close shuts the servers down and releases the state store.
func (a *App) Close() error {
	return errors.Join(a.closeServer(context.Background()), a.closeStore())
}

func (a *App) closeStore() error {
	if a.states == nil {
		return nil
	}
	return a.states.Close()
}
