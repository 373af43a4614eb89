// Package watch reloads a session when the metadata tree on disk changes.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Cache is dropped before every reload so the loader sees fresh documents
type Cache interface {
	Clear()
}

// Watcher watches a directory tree and calls onChange once changes have
// been quiet for the debounce interval. Subdirectories created while
// running are watched too.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	root     string
	cache    Cache
	onChange func()
	debounce time.Duration
	pending  bool
	lastAt   time.Time
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	now      func() time.Time
}

// New creates a watcher for root. cache may be nil.
func New(root string, debounce time.Duration, cache Cache, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		fsw:      fsw,
		root:     root,
		cache:    cache,
		onChange: onChange,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		now:      time.Now,
	}, nil
}

// Start adds every directory under root and begins watching in the
// background
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	slog.Debug("watching metadata tree", slog.String("root", w.root))

	go w.run(ctx)
	return nil
}

// Stop ends watching and waits for the loop to exit
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.fsw.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fsw.Close(); err != nil {
		slog.Warn("failed to close watcher", slog.String("error", err.Error()))
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			slog.Debug("skipping unreadable directory", slog.String("path", p), slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(p); err != nil {
			if p == root {
				return err
			}
			slog.Debug("failed to watch directory", slog.String("path", p), slog.String("error", err.Error()))
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				slog.Debug("failed to watch new directory", slog.String("path", event.Name), slog.String("error", err.Error()))
			}
		}
	}
	slog.Debug("metadata changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))

	w.mu.Lock()
	w.pending = true
	w.lastAt = w.now()
	w.mu.Unlock()
}

// flush fires onChange when the last change is older than the debounce
// interval
func (w *Watcher) flush() {
	w.mu.Lock()
	if !w.pending || w.now().Sub(w.lastAt) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	if w.cache != nil {
		w.cache.Clear()
	}
	w.onChange()
}
