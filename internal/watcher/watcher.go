// Package watcher installs filesystem watches on deployment targets and
// reports debounced change and delete events keyed by deployment id.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"sincro-go/internal/sincro"
)

// EventKind says what happened to a watched target.
type EventKind string

const (
	Changed EventKind = "changed"
	Deleted EventKind = "deleted"
)

// Event is delivered once per settle window per deployment.
type Event struct {
	DeploymentID string
	Kind         EventKind
	Path         string
}

// DefaultSettle is the quiet period before a burst of writes is reported.
const DefaultSettle = 500 * time.Millisecond

const eventBuffer = 64

// FSWatcher implements sincro.Watcher with one fsnotify watcher per scope.
type FSWatcher struct {
	mu     sync.Mutex
	scopes map[string]*scope
	events chan Event
	settle time.Duration
	closed bool
	logger sincro.Logger
}

var _ sincro.Watcher = (*FSWatcher)(nil)

type scope struct {
	id     string
	target string
	// dir is true when target is a directory watched recursively. Otherwise
	// the parent directory is watched and events are filtered by name.
	dir     bool
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	pending Event
	stopped bool
}

// NewFSWatcher creates a watcher. A non-positive settle uses DefaultSettle.
func NewFSWatcher(settle time.Duration, logger sincro.Logger) *FSWatcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &FSWatcher{
		scopes: make(map[string]*scope),
		events: make(chan Event, eventBuffer),
		settle: settle,
		logger: logger,
	}
}

// Events returns the channel events are delivered on. It is closed by Close.
func (w *FSWatcher) Events() <-chan Event {
	return w.events
}

// Watch starts watching path for scopeID. Watching an already watched scope
// is a no-op.
func (w *FSWatcher) Watch(scopeID, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("watcher is closed")
	}
	if _, ok := w.scopes[scopeID]; ok {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}

	s := &scope{id: scopeID, target: filepath.Clean(path), watcher: fw}
	if info, err := os.Stat(s.target); err == nil && info.IsDir() {
		s.dir = true
		err = addRecursive(fw, s.target)
	} else {
		err = fw.Add(filepath.Dir(s.target))
	}
	if err != nil {
		fw.Close()
		return fmt.Errorf("watching %s: %w", path, err)
	}

	w.scopes[scopeID] = s
	go w.loop(s)

	w.logger.Info("started watching", "deployment", scopeID, "path", s.target)
	return nil
}

// Unwatch stops watching scopeID. Unknown scopes are ignored.
func (w *FSWatcher) Unwatch(scopeID string) error {
	w.mu.Lock()
	s, ok := w.scopes[scopeID]
	delete(w.scopes, scopeID)
	w.mu.Unlock()

	if !ok {
		return nil
	}
	s.stop()
	if err := s.watcher.Close(); err != nil {
		return fmt.Errorf("closing watcher for %s: %w", scopeID, err)
	}
	w.logger.Info("stopped watching", "deployment", scopeID)
	return nil
}

func (w *FSWatcher) IsWatching(scopeID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.scopes[scopeID]
	return ok
}

// Len returns the number of watched scopes.
func (w *FSWatcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.scopes)
}

// Close stops every watch and closes the events channel.
func (w *FSWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	scopes := w.scopes
	w.scopes = make(map[string]*scope)
	close(w.events)
	w.mu.Unlock()

	var errs []error
	for _, s := range scopes {
		s.stop()
		if err := s.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *FSWatcher) loop(s *scope) {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			w.handle(s, ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "deployment", s.id, "error", err)
		}
	}
}

func (w *FSWatcher) handle(s *scope, ev fsnotify.Event) {
	name := filepath.Clean(ev.Name)
	if !s.dir && name != s.target {
		return
	}
	if s.dir && filepath.Base(name) == ".git" {
		return
	}
	if ev.Op == fsnotify.Chmod {
		return
	}

	kind := Changed
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		kind = Deleted
	case ev.Has(fsnotify.Create) && s.dir:
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if err := addRecursive(s.watcher, name); err != nil {
				w.logger.Warn("could not watch new directory", "deployment", s.id, "path", name, "error", err)
			}
		}
	}

	w.logger.Debug("file event", "deployment", s.id, "path", name, "op", ev.Op.String())
	s.schedule(Event{DeploymentID: s.id, Kind: kind, Path: name}, w.settle, w.emit)
}

func (w *FSWatcher) emit(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	default:
		w.logger.Warn("dropping file event", "deployment", ev.DeploymentID, "kind", string(ev.Kind))
	}
}

// schedule records ev as the pending event and restarts the settle timer.
// The last event in a burst wins.
func (s *scope) schedule(ev Event, settle time.Duration, emit func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = ev
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(settle, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		ev := s.pending
		s.mu.Unlock()
		emit(ev)
	})
}

func (s *scope) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" && path != root {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
