// Package watch invalidates cache entries when their backing files change
// on disk. It monitors the current project's local source directories with
// fsnotify and debounces rapid bursts of events so a save-heavy editor
// session triggers one invalidation per file, not dozens.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fractary/codex/internal/ref"
)

// Invalidator is the cache surface the watcher depends on.
type Invalidator interface {
	InvalidateURI(uri string) error
}

// Config holds watcher configuration.
type Config struct {
	// DebounceInterval is how long to wait before flushing queued
	// changes. Batches rapid updates together.
	DebounceInterval time.Duration

	// Logger for watcher activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 100 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Watcher monitors local source directories and invalidates the cache
// entries of files that change.
type Watcher struct {
	org     string
	project string
	rootDir string
	sources []string
	cache   Invalidator
	config  *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // absolute path -> queue time
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for the given project context. sources are
// directories relative to rootDir; each is watched recursively.
func New(org, project, rootDir string, sources []string, cache Invalidator, config *Config) (*Watcher, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache cannot be nil")
	}
	if rootDir == "" {
		return nil, fmt.Errorf("rootDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		org:         org,
		project:     project,
		rootDir:     rootDir,
		sources:     sources,
		cache:       cache,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins watching. It blocks until ctx is cancelled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	watched := 0
	for _, src := range w.sources {
		dir := filepath.Join(w.rootDir, filepath.FromSlash(src))
		n, err := w.addRecursive(dir)
		if err != nil {
			w.config.Logger.Printf("Skipping %s: %v", dir, err)
			continue
		}
		watched += n
	}
	if watched == 0 {
		return fmt.Errorf("no watchable source directories under %s", w.rootDir)
	}
	w.config.Logger.Printf("Watching %d directories under %s", watched, w.rootDir)

	w.wg.Add(2)
	go w.watchFileEvents()
	go w.processChangeQueue()

	select {
	case <-ctx.Done():
		return w.Stop()
	case <-w.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	w.cancel()
	if err := w.watcher.Close(); err != nil {
		w.config.Logger.Printf("Error closing watcher: %v", err)
	}
	w.wg.Wait()
	return nil
}

// addRecursive watches dir and every subdirectory. fsnotify watches are
// per-directory, not per-tree.
func (w *Watcher) addRecursive(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		count++
		return nil
	})
	return count, err
}

// watchFileEvents monitors filesystem events and queues changes.
func (w *Watcher) watchFileEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// New directories must be added to the watch set so
			// files created inside them are seen.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if _, err := w.addRecursive(event.Name); err != nil {
						w.config.Logger.Printf("Failed to watch new directory %s: %v", event.Name, err)
					}
					continue
				}
			}

			w.queueChange(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange adds a file to the change queue with debouncing.
func (w *Watcher) queueChange(path string) {
	w.changeQueueMu.Lock()
	defer w.changeQueueMu.Unlock()

	w.changeQueue[path] = time.Now()
}

// processChangeQueue flushes queued changes once they have been quiet for
// the debounce interval.
func (w *Watcher) processChangeQueue() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending invalidates cache entries for files whose last event is
// older than the debounce interval.
func (w *Watcher) flushPending() {
	now := time.Now()

	w.changeQueueMu.Lock()
	ready := make([]string, 0, len(w.changeQueue))
	for path, queued := range w.changeQueue {
		if now.Sub(queued) >= w.config.DebounceInterval {
			ready = append(ready, path)
			delete(w.changeQueue, path)
		}
	}
	w.changeQueueMu.Unlock()

	for _, path := range ready {
		uri, ok := w.uriFor(path)
		if !ok {
			continue
		}
		if err := w.cache.InvalidateURI(uri); err != nil {
			w.config.Logger.Printf("Failed to invalidate %s: %v", uri, err)
			continue
		}
		w.config.Logger.Printf("Invalidated %s", uri)
	}
}

// uriFor maps an absolute file path back to its codex URI.
func (w *Watcher) uriFor(path string) (string, bool) {
	rel, err := filepath.Rel(w.rootDir, path)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", false
	}
	return ref.Build(w.org, w.project, filepath.ToSlash(rel)), true
}
