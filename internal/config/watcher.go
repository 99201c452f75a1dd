package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file into the manager whenever it changes.
// The parent directory is watched rather than the file itself so that
// editors that replace the file (write temp + rename) keep working.
// Blocks until ctx is cancelled.
func Watch(ctx context.Context, m *Manager, path string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
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
			cfg, err := LoadOrCreate(path)
			if err != nil {
				logger.Error("config reload failed", slog.Any("error", err))
				continue
			}
			m.Replace(cfg)
			logger.Info("config reloaded",
				slog.Int64("db_update_interval", cfg.DBUpdateSecs),
				slog.Int64("idle_threshold", cfg.IdleThresholdSec))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watch error", slog.Any("error", err))
		}
	}
}
