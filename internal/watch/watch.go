// Package watch re-runs analysis when files under the watched directories
// change. Events are debounced so an editor save or a branch switch triggers
// a single run.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/garagon/sifter/internal/discovery"
)

// DefaultDebounce is the quiet period after the last event before a run.
const DefaultDebounce = 2 * time.Second

// Config controls a Watcher.
type Config struct {
	Root     string
	Dirs     []string // relative to Root; empty means Root
	Debounce time.Duration
	// Extensions restricts events to files with these extensions
	// (case-insensitive, no leading dot). Empty accepts every file.
	Extensions []string
	Logger     *slog.Logger
}

// Handler receives the sorted root-relative paths changed since the last
// call. It runs on the watcher goroutine; events arriving meanwhile are
// queued for the next batch.
type Handler func(ctx context.Context, changed []string)

// Watcher wraps an fsnotify watcher over a directory tree.
type Watcher struct {
	fsw         *fsnotify.Watcher
	cfg         Config
	exts        map[string]struct{}
	log         *slog.Logger
	dirsWatched int
}

// New creates a watcher and registers every directory under cfg.Dirs,
// skipping VCS and tool directories.
func New(cfg Config) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if len(cfg.Dirs) == 0 {
		cfg.Dirs = []string{"."}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{fsw: fsw, cfg: cfg, log: log, exts: map[string]struct{}{}}
	for _, e := range cfg.Extensions {
		w.exts[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}

	for _, d := range cfg.Dirs {
		dir := d
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.Root, filepath.FromSlash(d))
		}
		if err := w.addTree(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	log.Info("watching for changes", "dirs", w.dirsWatched, "debounce", cfg.Debounce)
	return w, nil
}

// DirsWatched returns the number of registered directories.
func (w *Watcher) DirsWatched() int {
	return w.dirsWatched
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watching %s: %w", root, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && discovery.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Warn("cannot watch directory", "dir", path, "error", err)
			return nil
		}
		w.dirsWatched++
		return nil
	})
}

// Run delivers debounced change batches to h until ctx is done, then closes
// the underlying watcher.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	defer w.fsw.Close()

	pending := map[string]struct{}{}
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !discovery.SkipDir(filepath.Base(event.Name)) {
						if err := w.addTree(event.Name); err != nil {
							w.log.Warn("cannot watch new directory", "dir", event.Name, "error", err)
						}
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !w.accept(event.Name) {
				continue
			}
			pending[w.rel(event.Name)] = struct{}{}
			timer.Reset(w.cfg.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = map[string]struct{}{}
			w.log.Info("files changed", "count", len(changed))
			h(ctx, changed)
		}
	}
}

func (w *Watcher) accept(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	if len(w.exts) == 0 {
		return true
	}
	_, ok := w.exts[strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))]
	return ok
}

func (w *Watcher) rel(path string) string {
	if r, err := filepath.Rel(w.cfg.Root, path); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return filepath.ToSlash(path)
}
