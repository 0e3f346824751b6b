package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce groups the bursts of events editors produce on save.
const debounce = 100 * time.Millisecond

// watcher re-runs the build whenever a file of the include trees changes.
// Directories are watched rather than files so that editors replacing a
// file by rename are still seen.
type watcher struct {
	fs    *fsnotify.Watcher
	files map[string]bool
	dirs  map[string]bool
}

func (w *watcher) track(files []string) error {
	w.files = make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		w.files[f] = true
		dirs[filepath.Dir(f)] = true
	}
	for d := range w.dirs {
		if !dirs[d] {
			_ = w.fs.Remove(d)
		}
	}
	for d := range dirs {
		if w.dirs[d] {
			continue
		}
		if err := w.fs.Add(d); err != nil {
			return fmt.Errorf("watching %s: %w", d, err)
		}
	}
	w.dirs = dirs
	return nil
}

func (w *watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	name := ev.Name
	if abs, err := filepath.Abs(name); err == nil {
		name = abs
	}
	return w.files[name]
}

// watch blocks until ctx is done, rebuilding on every relevant change.
func (b *builder) watch(ctx context.Context, files []string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer fsw.Close()

	w := &watcher{fs: fsw}
	if err := w.track(files); err != nil {
		return err
	}
	fmt.Fprintf(b.out, "watching %d file(s)\n", len(w.files))

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.relevant(ev) {
				b.log.Debug("change", "path", ev.Name, "op", ev.Op.String())
				fire = time.After(debounce)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			b.log.Warn("watch error", "error", err)
		case <-fire:
			fire = nil
			files, err := b.build(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil && !errors.Is(err, errReported) {
				return err
			}
			if err := w.track(files); err != nil {
				return err
			}
			fmt.Fprintf(b.out, "rebuilt %d output(s)\n", len(b.jobs))
		}
	}
}
