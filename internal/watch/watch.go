// Package watch turns a hot folder into strip jobs: every four images dropped
// into the folder become one batch.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"photobooth/internal/fsutil"
	"photobooth/internal/session"
)

// Submitter receives each settled batch.
type Submitter func(ctx context.Context, paths []string) error

// Watcher monitors one directory.
type Watcher struct {
	dir     string
	batcher *Batcher
	submit  Submitter
	log     *slog.Logger
	tick    time.Duration
}

// New creates a watcher on dir. Files already present are batched first.
func New(dir string, settle time.Duration, submit Submitter, logger *slog.Logger) *Watcher {
	tick := settle / 2
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &Watcher{
		dir:     dir,
		batcher: NewBatcher(session.RequiredPhotos, settle),
		submit:  submit,
		log:     logger,
		tick:    tick,
	}
}

// Run blocks until ctx is done or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info("watching hot folder", "dir", w.dir)

	existing, err := fsutil.ListImages(w.dir)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, p := range existing {
		w.batcher.Add(p, now)
	}

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if n := w.batcher.Pending(); n > 0 {
				w.log.Warn("hot folder stopped with an incomplete batch", "pending", n)
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event, time.Now())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("filesystem watcher error", "error", err)
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event, now time.Time) {
	switch {
	case event.Has(fsnotify.Create):
		if w.batcher.Add(event.Name, now) {
			w.log.Debug("hot folder file queued", "path", event.Name, "pending", w.batcher.Pending())
		}
	case event.Has(fsnotify.Write):
		w.batcher.Touch(event.Name, now)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.batcher.Remove(event.Name)
	}
}

func (w *Watcher) flush(ctx context.Context, now time.Time) {
	for _, batch := range w.batcher.Ready(now) {
		if err := w.submit(ctx, batch); err != nil {
			w.log.Error("hot folder batch rejected", "files", batch, "error", err)
			continue
		}
		w.log.Info("hot folder batch submitted", "files", len(batch))
	}
}
