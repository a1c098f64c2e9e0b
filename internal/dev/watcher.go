package dev

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// EventKind classifies a file change.
type EventKind int

const (
	Added EventKind = iota
	Modified
	Removed
)

// String returns the kind name for logging.
func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	default:
		return "removed"
	}
}

// Event is one observed file change.
type Event struct {
	Kind EventKind
	Path string
}

// DefaultIgnore contains path substrings never worth a rebuild.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	".swp",
	"~",
}

// Watcher emits file-change events for a directory tree. Newly created
// subdirectories are picked up automatically. Debouncing is the
// consumer's concern; the watcher reports raw events.
type Watcher struct {
	fs      *fsnotify.Watcher
	root    string
	ignore  []string
	logger  *slog.Logger
	onEvent func(Event)
}

// NewWatcher creates a watcher over root delivering events to onEvent.
func NewWatcher(root string, logger *slog.Logger, onEvent func(Event)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:      fsw,
		root:    root,
		ignore:  DefaultIgnore,
		logger:  logger.With("component", "watcher"),
		onEvent: onEvent,
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers events until the context is canceled or the underlying
// watcher closes.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.ignored(ev.Name) {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		// A new directory needs its own watch before anything inside it
		// can be seen.
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warn("watching new directory", "path", ev.Name, "error", err)
			}
		}
		w.onEvent(Event{Kind: Added, Path: ev.Name})

	case ev.Op.Has(fsnotify.Write):
		w.onEvent(Event{Kind: Modified, Path: ev.Name})

	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.onEvent(Event{Kind: Removed, Path: ev.Name})
	}
}

func (w *Watcher) ignored(path string) bool {
	for _, pat := range w.ignore {
		if strings.Contains(path, pat) {
			return true
		}
	}
	return false
}

// addRecursive watches dir and every directory below it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || w.ignored(path) {
			return nil
		}
		return w.fs.Add(path)
	})
}
