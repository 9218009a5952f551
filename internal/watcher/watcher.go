// Package watcher waits for a model artifact to appear on disk and performs a
// one-time load when it does.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches the directory of one file and calls load after the file is
// created or written. Once load succeeds the watcher stops itself.
type Watcher struct {
	path     string
	load     func() error
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	timer    *time.Timer
	started  bool
	loaded   bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for watcher events.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long the file must be quiet before load is called.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher for path. load is called at most once successfully;
// a failed load (e.g. a half-written file) is retried on the next event.
func New(path string, load func() error, opts ...Option) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		load:     load,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. The parent directory is created if missing. If the
// file already exists, a load is scheduled immediately. Start runs until ctx is
// cancelled, Stop is called, or load succeeds.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.mu.Unlock()
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	w.started = true
	w.mu.Unlock()

	w.logger.Info("waiting for model artifact", zap.String("path", w.path))
	if _, err := os.Stat(w.path); err == nil {
		w.schedule()
	}
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	w.logger.Debug("artifact event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
		w.schedule()
	}
}

// schedule (re)starts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loaded || !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.loaded {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.mu.Unlock()

	if err := w.load(); err != nil {
		w.logger.Warn("artifact load failed; still watching", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.loaded = true
	w.mu.Unlock()
	w.logger.Info("artifact loaded by watcher", zap.String("path", w.path))
	w.Stop()
}

// Loaded reports whether load has succeeded.
func (w *Watcher) Loaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

// Done is closed when the watcher stops.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	fw := w.watcher
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() {
		close(w.done)
		if fw != nil {
			_ = fw.Close()
		}
	})
}
