// Package watch turns filesystem events under a set of directories into
// debounced change callbacks.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is a wrapper around fsnotify.Event
type Event struct {
	Name string
	Op   fsnotify.Op
}

// Watcher calls OnEvent once per burst of changes, with the last event of
// the burst.
type Watcher struct {
	watcher  *fsnotify.Watcher
	Dirs     []string
	Debounce time.Duration
	OnEvent  func(Event)
	logger   *slog.Logger
}

// New creates a new watcher for the specified directories
func New(dirs []string, debounce time.Duration, logger *slog.Logger, onEvent func(Event)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		watcher:  w,
		Dirs:     dirs,
		Debounce: debounce,
		OnEvent:  onEvent,
		logger:   logger,
	}, nil
}

func (w *Watcher) addTree(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return
	}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Skip hidden directories like .git
			if path != dir && strings.HasPrefix(filepath.Base(path), ".") {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("Failed to watch directory", "dir", dir, "error", err)
	}
}

// Run watches until ctx is cancelled. Callbacks never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	for _, dir := range w.Dirs {
		w.addTree(dir)
	}

	var (
		mu      sync.Mutex
		timer   *time.Timer
		running sync.Mutex
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		// Let an in-flight callback finish
		running.Lock()
		running.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			// Ignore chmod and other meta events
			if event.Op == fsnotify.Chmod {
				continue
			}

			// Handle new directories
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addTree(event.Name)
				}
			}

			ev := Event{Name: event.Name, Op: event.Op}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.Debounce, func() {
				if ctx.Err() != nil {
					return
				}
				running.Lock()
				defer running.Unlock()
				w.OnEvent(ev)
			})
			mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}
