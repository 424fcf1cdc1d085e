// Package watcher adapts fsnotify events into the project's
// modified-or-removed notifications. It is deliberately thin: debouncing
// and batching happen in the project, not here.
package watcher

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher forwards file events to a callback.
type Watcher struct {
	fs      *fsnotify.Watcher
	logger  *slog.Logger
	onEvent func(path string)
}

// New creates a Watcher delivering event paths to onEvent.
func New(onEvent func(path string), logger *slog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{fs: fs, logger: logger, onEvent: onEvent}, nil
}

// Add starts watching a file or directory.
func (w *Watcher) Add(path string) error { return w.fs.Add(path) }

// Remove stops watching a path.
func (w *Watcher) Remove(path string) error { return w.fs.Remove(path) }

// Run pumps events until ctx is cancelled or the watcher closes. Only
// content-affecting ops (write, create, remove, rename) are forwarded.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.onEvent(event.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// Close shuts the watcher down.
func (w *Watcher) Close() error { return w.fs.Close() }
