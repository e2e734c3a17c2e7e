package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/paramgrid/internal/fsutil"
)

// Watch reloads the configuration whenever a definition file under the
// configured paths changes, until ctx is done. Bursts of file events are
// coalesced: a reload runs once no event has arrived for debounce. onReload,
// when not nil, is told the outcome of every reload.
func (a *App) Watch(ctx context.Context, debounce time.Duration, onReload func(error)) error {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	for _, path := range a.cfg.ConfigPaths {
		if err := a.addWatches(fsw, path); err != nil {
			return err
		}
	}
	a.logger.Info("Watching definitions for changes.", "paths", a.cfg.ConfigPaths, "debounce", debounce)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = a.addWatches(fsw, ev.Name)
					continue
				}
			}
			if !isDefinition(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			a.logger.Debug("Definition change detected.", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			a.logger.Error("Watcher error", "error", err)

		case <-timer.C:
			err := a.Reload(ctx)
			if err != nil {
				a.logger.Error("Reload failed; keeping the previous configuration.", "error", err)
			}
			if onReload != nil {
				onReload(err)
			}
		}
	}
}

// addWatches watches path and, for a directory, every directory below it.
// A file is watched through its directory so that editors replacing the file
// do not drop the watch.
func (a *App) addWatches(fsw *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if !info.IsDir() {
		return fsw.Add(filepath.Dir(path))
	}
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := fsw.Add(p); err != nil {
				a.logger.Warn("Failed to watch directory", "path", p, "error", err)
			}
		}
		return nil
	})
}

func isDefinition(path string) bool {
	return fsutil.HasExtension(path, ".hcl", ".yaml", ".yml")
}
