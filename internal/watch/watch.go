// Package watch detects writes to the database file made by other processes
// and turns them into change notifications.
//
// Commits made through a store are announced by the store itself. A second
// process (a CLI invocation next to a running feed server) writes the same
// file behind our back; the only trace is the file and its WAL changing on
// disk. The watcher debounces those events and asks the store to tell every
// subscriber that anything may have changed.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Signaler receives the debounced change signal. *store.DB implements it.
type Signaler interface {
	NotifyExternal()
}

// Config holds configuration for the watcher.
type Config struct {
	// Debounce is how long the files must be quiet before a signal.
	// Bursts of writes from one transaction collapse into one signal.
	Debounce time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Debounce: 150 * time.Millisecond,
		Logger:   zap.NewNop(),
	}
}

// Watcher watches one database file.
type Watcher struct {
	fsw    *fsnotify.Watcher
	target Signaler
	dir    string
	names  map[string]bool
	config Config
	logger *zap.Logger

	mu        sync.Mutex
	running   bool
	dirty     bool
	lastEvent time.Time
	signals   int

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher for the database at dbPath. Start must be called
// before it emits anything.
func New(dbPath string, target Signaler, config Config) (*Watcher, error) {
	if target == nil {
		return nil, fmt.Errorf("target cannot be nil")
	}
	defaults := DefaultConfig()
	if config.Debounce <= 0 {
		config.Debounce = defaults.Debounce
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dbPath, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	base := filepath.Base(abs)
	return &Watcher{
		fsw:    fsw,
		target: target,
		dir:    filepath.Dir(abs),
		// The -shm file changes on reads too, so it is not watched.
		names:  map[string]bool{base: true, base + "-wal": true},
		config: config,
		logger: config.Logger.With(zap.String("component", "watch")),
		done:   make(chan struct{}),
	}, nil
}

// Start begins watching. The directory is watched rather than the file so
// the WAL appearing and disappearing is seen too.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.running = true
	w.wg.Add(2)
	go w.processEvents()
	go w.processDebounce()

	w.logger.Debug("watching database", zap.String("dir", w.dir))
	return nil
}

// Stop stops watching and waits for the background goroutines.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

// Signals returns how many change signals were sent.
func (w *Watcher) Signals() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.signals
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.mu.Lock()
				w.dirty = true
				w.lastEvent = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// relevant keeps writes, creates, removes and renames of the database
// file and its WAL.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !w.names[filepath.Base(event.Name)] {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *Watcher) processDebounce() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case <-ticker.C:
			w.mu.Lock()
			fire := w.dirty && time.Since(w.lastEvent) >= w.config.Debounce
			if fire {
				w.dirty = false
				w.signals++
			}
			w.mu.Unlock()

			if fire {
				w.logger.Debug("database changed on disk")
				w.target.NotifyExternal()
			}
		}
	}
}
