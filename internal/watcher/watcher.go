// Package watcher reports edits to gateway config files made outside the
// dashboard.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

type DriftEvent struct {
	Path string
	Op   fsnotify.Op
}

// Watcher observes the parent directories of a fixed set of files so that
// editors replacing a file by rename are still seen.
type Watcher struct {
	files  map[string]struct{}
	logger *slog.Logger
	events chan DriftEvent
}

func New(files []string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[filepath.Clean(f)] = struct{}{}
	}
	return &Watcher{
		files:  set,
		logger: logger,
		events: make(chan DriftEvent, 16),
	}
}

func (w *Watcher) Events() <-chan DriftEvent {
	return w.events
}

// Start begins watching; directories that do not exist yet are skipped.
// The events channel is closed when ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watched := 0
	seen := map[string]struct{}{}
	for f := range w.files {
		dir := filepath.Dir(f)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("cannot watch config dir", "dir", dir, "error", err)
			continue
		}
		watched++
	}
	w.logger.Debug("config drift watcher started", "dirs", watched)

	go func() {
		defer fsw.Close()
		defer close(w.events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if _, ok := w.files[filepath.Clean(ev.Name)]; !ok {
					continue
				}
				select {
				case w.events <- DriftEvent{Path: ev.Name, Op: ev.Op}:
				default:
				}
				w.logger.Info("gateway config changed on disk", "path", ev.Name, "op", ev.Op.String())
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
