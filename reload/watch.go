package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"ironbutton/log"
)

const settleDelay = 250 * time.Millisecond

// shouldReload reports whether a filesystem event touches the config file.
// Editors often write a temp file and rename it over the original, so the
// directory is watched and events are matched by name.
func shouldReload(path string, event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == path || filepath.Base(name) == filepath.Base(path)
}

// Watch pokes triggers when the config file at path changes. Bursts of
// events within settleDelay produce one request.
func Watch(ctx context.Context, path string, triggers chan<- struct{}) error {
	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	go func() {
		defer w.Close()

		timer := time.NewTimer(settleDelay)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if shouldReload(path, event) {
					log.Debugf("config changed: %s", event)
					timer.Reset(settleDelay)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("config watcher: %v", err)
			case <-timer.C:
				Poke(triggers)
			}
		}
	}()
	return nil
}
