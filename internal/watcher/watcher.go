// Package watcher feeds filesystem events into the change queue. Pausing
// drops events at the source so host-mediated edits never re-enter the
// pipeline.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codegraph/internal/queue"
)

// skipDirs are never watched. Mirrors the walker's exclusion set.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "venv": true,
	".venv": true, "__pycache__": true, ".next": true, ".nuxt": true,
	"dist": true, "build": true, "out": true, "target": true,
	".cache": true, "coverage": true, ".idea": true, ".vscode": true,
	".parcel-cache": true, ".nyc_output": true, ".pytest_cache": true,
	".tox": true, "__mocks__": true,
}

// Watcher wraps fsnotify with recursive directory registration.
type Watcher struct {
	fs        *fsnotify.Watcher
	queue     *queue.Queue
	projectID string
	logger    *logrus.Logger

	mu     sync.Mutex
	paused bool
	done   chan struct{}
}

// New creates a watcher delivering events for root into q.
func New(root, projectID string, q *queue.Queue, logger *logrus.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}

	w := &Watcher{
		fs:        fs,
		queue:     q,
		projectID: projectID,
		logger:    logger,
		done:      make(chan struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fs.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, skip
		}
		if !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	w.mu.Lock()
	paused := w.paused
	w.mu.Unlock()
	if paused {
		return
	}

	base := filepath.Base(event.Name)
	if skipDirs[base] {
		return
	}

	// New directories join the watch set.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDirs[base] {
				_ = w.addRecursive(event.Name)
			}
			return
		}
	}

	var changeType string
	switch {
	case event.Op.Has(fsnotify.Create):
		changeType = queue.ChangeCreated
	case event.Op.Has(fsnotify.Write):
		changeType = queue.ChangeUpdated
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		changeType = queue.ChangeDeleted
	default:
		return
	}

	w.queue.Offer(queue.Change{
		Path:       event.Name,
		ChangeType: changeType,
		ProjectID:  w.projectID,
	})
}

// Pause drops events until Resume. The queue is paused alongside so events
// already in flight are dropped too.
func (w *Watcher) Pause() {
	w.mu.Lock()
	w.paused = true
	w.mu.Unlock()
	w.queue.Pause()
}

// Resume re-enables event delivery.
func (w *Watcher) Resume() {
	w.mu.Lock()
	w.paused = false
	w.mu.Unlock()
	w.queue.Resume()
}

// WithPause runs fn while paused; see the queue's drop semantics.
func (w *Watcher) WithPause(fn func()) {
	w.Pause()
	defer w.Resume()
	fn()
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}
