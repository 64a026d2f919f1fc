package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher monitors the auth file so that a re-login performed by another
// copilotx process (the CLI while a server is running) is picked up without
// a restart. The credential file is replaced via rename, so the watch is on
// the containing directory.
type Watcher struct {
	manager  *Manager
	authFile string
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}

	mu          sync.Mutex
	running     bool
	lastModTime time.Time
}

// NewWatcher creates a watcher for the manager's credential file.
func NewWatcher(manager *Manager) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		manager:  manager,
		authFile: manager.store.Path(),
		watcher:  fsw,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching for credential changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher is already running")
	}

	if stat, err := os.Stat(w.authFile); err == nil {
		w.lastModTime = stat.ModTime()
	}

	// Watch the directory: atomic saves rename a temp file over auth.json,
	// which unregisters a file-level watch.
	dir := filepath.Dir(w.authFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	w.running = true
	go w.watchLoop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // Stop the initial timer

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isAuthEvent(event) {
				continue
			}

			// Debounce rapid file changes
			debounceTimer.Stop()
			debounceTimer = time.AfterFunc(500*time.Millisecond, func() {
				w.handleChange()
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Warn("Credential watcher error")

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) isAuthEvent(event fsnotify.Event) bool {
	if event.Name != w.authFile {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) handleChange() {
	if stat, err := os.Stat(w.authFile); err == nil {
		w.mu.Lock()
		changed := stat.ModTime().After(w.lastModTime)
		if changed {
			w.lastModTime = stat.ModTime()
		}
		w.mu.Unlock()
		if !changed {
			return
		}
	}
	// Deleted files also reload: the manager degrades to unauthenticated.

	if err := w.manager.Reload(); err != nil {
		logrus.WithError(err).Warn("Failed to reload credentials after file change")
		return
	}
	logrus.Info("Credentials reloaded from disk")
}
