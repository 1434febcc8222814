package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval coalesces editor write bursts into one pass.
const debounceInterval = 200 * time.Millisecond

// Watch runs passes over path until ctx is cancelled. A pass failure is
// logged and the loop keeps waiting for the next change; it never stops
// the watch session. A removed or renamed target is re-armed, matching
// editors that replace files on save.
func Watch(ctx context.Context, e *Engine, path string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer w.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watcher: resolve %s: %w", path, err)
	}
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("watcher: stat %s: %w", target, err)
	}
	isDir := info.IsDir()

	if isDir {
		if err := addDirsRecursive(w, target); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
	} else {
		// Watch the parent so rename-and-replace saves keep arriving.
		if err := w.Add(filepath.Dir(target)); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
	}

	// Initial pass before the first event.
	if err := e.SyncPath(ctx, target); err != nil {
		logger.Error("sync failed", slog.String("error", err.Error()))
	}

	logger.Info("watcher: started", slog.String("path", target))

	var debounce *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(debounceInterval)
			fire = debounce.C
		} else {
			debounce.Reset(debounceInterval)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			if err := e.SyncPath(ctx, target); err != nil {
				logger.Error("sync failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isDir && filepath.Clean(ev.Name) != target {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if isDir {
					if fi, statErr := os.Stat(ev.Name); statErr == nil && fi.IsDir() {
						if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
							logger.Warn("watcher: add new dir failed",
								slog.String("path", ev.Name), slog.String("error", addErr.Error()))
						}
					}
				}
				schedule()

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if !isDir {
					_ = w.Add(filepath.Dir(target))
					if _, statErr := os.Stat(target); statErr != nil {
						logger.Error("watched file removed", slog.String("path", target))
						continue
					}
				}
				schedule()
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
