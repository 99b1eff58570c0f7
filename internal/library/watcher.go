package library

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates a Library's cache as soon as the backing directory
// changes, instead of waiting for the TTL to lapse. The TTL remains the
// correctness backstop; the watcher only tightens freshness.
type Watcher struct {
	fsw     *fsnotify.Watcher
	library *Library
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher over the library's content directory.
func NewWatcher(library *Library) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(library.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", library.dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{fsw: fsw, library: library, ctx: ctx, cancel: cancel}

	w.wg.Add(1)
	go w.eventLoop()

	return w, nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.library.Invalidate()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("library watcher error: %v", err)
		}
	}
}
