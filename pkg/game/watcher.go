package game

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the catalog when its content file changes on disk.
type Watcher struct {
	catalog *Catalog
	fsw     *fsnotify.Watcher
	doneCh  chan struct{}
}

// NewWatcher starts watching the catalog's content file. Editors and
// deploy tooling often replace files by rename, so the watch covers the
// containing directory and filters events down to the one file.
func NewWatcher(catalog *Catalog) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create content watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(catalog.path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch content directory: %w", err)
	}

	w := &Watcher{
		catalog: catalog,
		fsw:     fsw,
		doneCh:  make(chan struct{}),
	}
	go w.run()

	return w, nil
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	target := filepath.Clean(w.catalog.path)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.catalog.Reload(); err != nil {
				// Keep serving the previous content.
				w.catalog.logger.Warn().Err(err).Msg("Content reload failed, keeping previous catalog")
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.catalog.logger.Warn().Err(err).Msg("Content watcher error")
		}
	}
}

// Close stops watching and drains the event loop.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.doneCh
	return err
}
