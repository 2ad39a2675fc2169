// Package watch reloads the catalog when its file changes on disk and
// swaps the new snapshot into a running engine.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/sqlsense/pkg/catalog"
)

// DefaultDebounce is the quiet period after the last change before a
// reload starts.
const DefaultDebounce = 200 * time.Millisecond

// Loader reads a fresh snapshot.
type Loader func(ctx context.Context) (*catalog.Snapshot, error)

// Target receives reloaded snapshots. *engine.Engine satisfies it.
type Target interface {
	SetCatalog(*catalog.Snapshot)
}

// Options configure a Watcher.
type Options struct {
	// Debounce is the quiet period before reloading (DefaultDebounce if zero)
	Debounce time.Duration
	// OnReload is called after every reload attempt (optional)
	OnReload func(*catalog.Snapshot, error)
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Watcher reloads one catalog file.
type Watcher struct {
	path   string
	load   Loader
	target Target
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a watcher for path. Nothing is watched until Run.
func New(path string, load Loader, target Target, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{path: path, load: load, target: target, opts: opts, logger: logger}
}

// Run watches until ctx is done. The file's directory is watched rather
// than the file itself so that editors replacing the file by rename are
// seen.
func (w *Watcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", w.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	w.logger.Info("watching catalog", slog.String("path", abs))

	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// schedule debounces reloads.
func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() {
		if ctx.Err() == nil {
			w.Reload(ctx)
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Reload loads the catalog now. On failure the target keeps its current
// snapshot.
func (w *Watcher) Reload(ctx context.Context) {
	snap, err := w.load(ctx)
	if err != nil {
		w.logger.Warn("catalog reload failed, keeping previous snapshot",
			slog.String("path", w.path), slog.String("error", err.Error()))
	} else {
		w.target.SetCatalog(snap)
		w.logger.Info("catalog reloaded",
			slog.String("path", w.path), slog.Int("objects", len(snap.Objects())))
	}
	if w.opts.OnReload != nil {
		w.opts.OnReload(snap, err)
	}
}
