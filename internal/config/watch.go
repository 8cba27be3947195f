package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the file at path after it changes on disk and passes the
// result, with the environment applied on top, to onChange. The parent
// directory is watched so editors that replace the file are seen too.
// Watch returns when ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				fire = time.After(reloadDebounce)
			}
		case <-fire:
			fire = nil
			cfg := Default()
			if err := cfg.LoadFile(abs); err != nil {
				logger.Warn("Config reload failed", "path", abs, "error", err)
				continue
			}
			if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
				logger.Warn("Config reload failed", "path", abs, "error", err)
				continue
			}
			logger.Info("Config reloaded", "path", abs)
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", "error", err)
		}
	}
}
