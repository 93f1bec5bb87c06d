// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// LIVE RELOAD
// =============================================================================

// DefaultWatchDebounce collapses the burst of events an editor save makes.
const DefaultWatchDebounce = 150 * time.Millisecond

// Watch calls fn with the re-read configuration each time the file at
// path is written, created or renamed into place. It watches the parent
// directory so atomic replace-by-rename is seen. fn runs on the watcher's
// goroutine. Watching stops when ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config, error)) error {
	return watch(ctx, path, DefaultWatchDebounce, fn)
}

func watch(ctx context.Context, path string, debounce time.Duration, fn func(*Config, error)) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		reload := make(chan struct{}, 1)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})

			case <-reload:
				if _, err := os.Stat(path); err != nil {
					// Renamed away; wait for the replacement.
					continue
				}
				cfg, err := LoadFromPath(path)
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("config reload failed")
				} else {
					log.Info().Str("path", path).Msg("config reloaded")
				}
				fn(cfg, err)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()

	return nil
}
