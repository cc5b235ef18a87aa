package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config at path each time it changes and sends every
// version that loads and validates. Edits that fail to load are passed to
// onError and otherwise ignored. The channel closes when ctx is done.
//
// The parent directory is watched rather than the file so that editors which
// save by renaming a temp file over it are still seen.
func Watch(ctx context.Context, path string, onError func(error)) (<-chan *Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	updates := make(chan *Config, 1)
	go func() {
		defer close(updates)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				cfg, err := Load(abs)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				// Only the newest config matters
				select {
				case <-updates:
				default:
				}
				updates <- cfg

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return updates, nil
}
