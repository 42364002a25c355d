package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads Config from ~/.openrouter-proxy/config.yaml whenever it
// changes on disk, debouncing bursts of writes (editors often emit several
// events for one save).
type Watcher struct {
	fsw    *fsnotify.Watcher
	logger *zap.Logger
}

// NewWatcher opens an fsnotify watch on the config home directory.
func NewWatcher(logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(HomeDir()); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw, logger: logger}, nil
}

// Run blocks, invoking onReload(cfg) each time config.yaml settles after a
// change. It returns when stop is closed.
func (w *Watcher) Run(stop <-chan struct{}, onReload func(*Config)) {
	target := filepath.Join(HomeDir(), "config.yaml")
	var pending *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-stop:
			if pending != nil {
				pending.Stop()
			}
			w.fsw.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(150*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", zap.Error(err))
		case <-reload:
			cfg, err := Load()
			if err != nil {
				w.logger.Warn("config reload failed", zap.Error(err))
				continue
			}
			w.logger.Info("config reloaded")
			onReload(cfg)
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
