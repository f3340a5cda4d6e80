// Package watch reruns a load whenever its input or spec file changes.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceWindow = 500 * time.Millisecond

// Watcher observes a set of files and invokes a callback after changes
// settle. Editors that write via rename-and-replace fire several events per
// save, so events are debounced rather than acted on directly.
type Watcher struct {
	files    map[string]bool
	callback func() error
	watcher  *fsnotify.Watcher
	done     chan bool
}

// New creates a watcher over the given files. The containing directories
// are watched so that atomic replaces are still observed.
func New(callback func() error, files ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		files:    make(map[string]bool, len(files)),
		callback: callback,
		watcher:  fw,
		done:     make(chan bool),
	}

	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	return w, nil
}

// Start runs the callback once, then again after each settled change.
func (w *Watcher) Start() error {
	if err := w.callback(); err != nil {
		return fmt.Errorf("initial run failed: %w", err)
	}

	go func() {
		debounceTimer := time.NewTimer(debounceWindow)
		debounceTimer.Stop()
		var debounceCh <-chan time.Time

		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if abs, err := filepath.Abs(event.Name); err == nil && w.files[abs] {
					debounceTimer.Reset(debounceWindow)
					debounceCh = debounceTimer.C
				}

			case <-debounceCh:
				if err := w.callback(); err != nil {
					fmt.Fprintf(os.Stderr, "Watch run error: %v\n", err)
				}
				debounceCh = nil

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

			case <-w.done:
				return
			}
		}
	}()

	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}
