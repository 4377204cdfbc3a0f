// Package ingest feeds pre-recorded WAV files through the same upload and
// display pipeline as live recordings. Files dropped into the watched
// directory are picked up as they appear.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/madebyv-in/civicbridge/audio"
)

// Uploader consumes one artifact per ingested file.
type Uploader interface {
	Upload(ctx context.Context, artifact audio.Artifact) error
}

// Notifier receives per-file notices.
type Notifier interface {
	System(text string)
	Error(text string)
}

// Watcher observes one directory for new WAV files.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	uploader Uploader
	notify   Notifier
}

func New(dir string, uploader Uploader, notify Notifier) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot watch %s: not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{dir: dir, watcher: watcher, uploader: uploader, notify: notify}, nil
}

// Run processes events until the context ends. A bad file is a notice,
// never a reason to stop watching.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	slog.Info("Watching for audio files", "path", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
				w.handle(ctx, event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if !strings.HasSuffix(strings.ToLower(path), ".wav") {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.notify.Error("Could not read " + filepath.Base(path) + ": " + err.Error())
		return
	}
	if len(data) == 0 {
		slog.Debug("Skipping empty file", "path", path)
		return
	}

	w.notify.System("Ingesting " + filepath.Base(path))
	artifact := audio.Artifact{Data: data, MIME: audio.MIMEWAV}
	if err := w.uploader.Upload(ctx, artifact); err != nil {
		slog.Error("Failed to ingest file", "path", path, "error", err)
	}
}
