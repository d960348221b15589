package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and calls reload each time the file is written or
// recreated. It runs until ctx is cancelled. A reload error is logged and the
// caller keeps whatever it loaded last.
//
// The parent directory is watched rather than the file so that atomic saves
// (write to temp, rename over) are still seen.
func Watch(ctx context.Context, path string, logger *slog.Logger, reload func(path string) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	logger.Info("watching file for changes", slog.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := reload(target); err != nil {
				logger.Error("reload failed, keeping previous version", slog.String("path", target), slog.Any("error", err))
				continue
			}
			logger.Info("file reloaded", slog.String("path", target))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", slog.Any("error", err))
		}
	}
}
