// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CONFIG FILE WATCHER
// =============================================================================

// Watcher reloads the configuration when its file changes on disk, so
// theme or endpoint edits apply without restarting the client. Reloads are
// debounced: editors write config files in bursts.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload func(*Config)
	onError  func(error)

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending *time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewWatcher creates a watcher for the given config file. onReload is
// called with the freshly loaded config after each change; onError is
// called when a changed file fails to load (the previous config stays in
// effect). Either callback may be nil.
func NewWatcher(path string, onReload func(*Config), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     path,
		debounce: 250 * time.Millisecond,
		onReload: onReload,
		onError:  onError,
		watcher:  fsw,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching for config changes. The parent directory is
// watched rather than the file itself: editors that replace the file by
// rename would otherwise silently detach the watch.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.processEvents()
	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

// processEvents filters directory events down to the config file and
// schedules debounced reloads.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// scheduleReload resets the debounce timer; only the last change of a
// burst triggers a reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.reload)
}

// reload re-parses the config file and invokes the callback.
func (w *Watcher) reload() {
	if w.ctx.Err() != nil {
		return
	}
	cfg, err := LoadFromPath(w.path)
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
