// Package watcher watches the frames directory with fsnotify and triggers
// ingestion syncs when new episode directories or frame files appear.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 2 * time.Second

// Watcher watches the frames root and fires a debounced sync callback. Frame
// extraction writes thousands of files in bursts, so events collapse into one
// sync per quiet period rather than one per file.
type Watcher struct {
	root     string
	onSync   func()
	debounce time.Duration
	logger   *zap.Logger

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the quiet period before a sync fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over the frames root. onSync is invoked after
// each debounced burst of filesystem events.
func NewWatcher(root string, onSync func(), opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		onSync:   onSync,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher on the root and its episode subdirectories. It
// runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.root); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	// Watch existing episode directories; new ones are added on create.
	entries, err := os.ReadDir(w.root)
	if err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := watcher.Add(filepath.Join(w.root, entry.Name())); err != nil && w.logger != nil {
				w.logger.Debug("watcher failed to add episode directory",
					zap.String("path", entry.Name()), zap.Error(err))
			}
		}
	}
	w.watcher = watcher
	w.started = true
	w.mu.Unlock()
	if w.logger != nil {
		w.logger.Debug("watcher starting", zap.String("root", w.root))
	}
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !strings.HasPrefix(filepath.Clean(ev.Name), filepath.Clean(w.root)) {
		return
	}
	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			watcher := w.watcher
			w.mu.Unlock()
			if watcher != nil {
				if err := watcher.Add(ev.Name); err != nil && w.logger != nil {
					w.logger.Debug("watcher failed to add directory",
						zap.String("path", ev.Name), zap.Error(err))
				}
			}
		}
		w.scheduleSync()
	case ev.Op.Has(fsnotify.Write):
		w.scheduleSync()
	}
}

// scheduleSync (re)starts the debounce timer; the sync callback fires once
// after a quiet period.
func (w *Watcher) scheduleSync() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.logger != nil {
			w.logger.Debug("watcher triggering sync", zap.String("root", w.root))
		}
		w.onSync()
	})
}

// Stop stops the watcher and cancels any pending sync.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		if w.watcher != nil {
			_ = w.watcher.Close()
			w.watcher = nil
		}
		w.started = false
		close(w.done)
	})
}
