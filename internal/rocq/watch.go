package rocq

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ensureWatcher lazily starts the shared fsnotify watcher and its
// dispatch goroutine.
func (r *Registry) ensureWatcher() (*fsnotify.Watcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		return r.watcher, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	r.watcher = w
	go r.dispatchWatchEvents(w)
	return w, nil
}

// dispatchWatchEvents debounces filesystem write events per path and
// syncs the corresponding document once activity settles.
func (r *Registry) dispatchWatchEvents(w *fsnotify.Watcher) {
	timers := make(map[string]*time.Timer)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := ev.Name
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(r.cfg.debounce(), func() {
				if err := r.SyncDoc(context.Background(), path); err != nil {
					log.Printf("rocq: watch sync %s: %v", path, err)
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("rocq: watch error: %v", err)
		}
	}
}

// Watch binds path's open document to the filesystem watcher, so edits
// made by any external process are synced through ApplyTextEdits.
func (r *Registry) Watch(path string) error {
	if _, err := r.GetDoc(path); err != nil {
		return err
	}
	w, err := r.ensureWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		return err
	}
	return nil
}

// Unwatch removes path from the filesystem watcher, if it was being
// watched. A no-op if no watcher has been started.
func (r *Registry) Unwatch(path string) error {
	r.mu.Lock()
	w := r.watcher
	r.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Remove(path)
}
