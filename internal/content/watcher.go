package content

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/terra-clan/pylearn-arcade/internal/metrics"
)

// Watcher reloads a Loader when files under its directory change. Bursts of
// events are collapsed into one reload after the debounce interval.
type Watcher struct {
	loader   *Loader
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher watches dir and its category subdirectories
func NewWatcher(loader *Loader, dir string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	w := &Watcher{
		loader:   loader,
		dir:      dir,
		debounce: debounce,
		watcher:  fw,
	}
	if err := w.addDirs(); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addDirs() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.watcher.Add(filepath.Join(w.dir, e.Name())); err != nil {
				slog.Warn("failed to watch category dir", "dir", e.Name(), "error", err)
			}
		}
	}
	return nil
}

// Run processes events until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.watcher.Add(ev.Name)
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("content watcher error", "error", err)

		case <-timer.C:
			pending = false
			if err := w.loader.LoadFromDir(w.dir); err != nil {
				metrics.ContentReloads.WithLabelValues("error").Inc()
				slog.Error("content reload failed, keeping previous catalog", "error", err)
				continue
			}
			metrics.ContentReloads.WithLabelValues("ok").Inc()
		}
	}
}
