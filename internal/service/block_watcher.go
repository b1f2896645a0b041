package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ─────────────────────────────────────────────────────────────
// Block Watcher: imports block files dropped into a directory
// ─────────────────────────────────────────────────────────────

const watchDebounce = 500 * time.Millisecond

// BlockWatcher imports *.json files from a block library directory whenever
// they are written.
type BlockWatcher struct {
	dir    string
	blocks *BlockService
	log    *logrus.Entry

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	timers      map[string]*time.Timer
}

func NewBlockWatcher(dir string, blocks *BlockService) *BlockWatcher {
	return &BlockWatcher{
		dir:    dir,
		blocks: blocks,
		log:    logrus.WithFields(logrus.Fields{"component": "block-watcher", "dir": dir}),
		timers: make(map[string]*time.Timer),
	}
}

// ImportAll imports every block file currently in the directory. Files that
// fail are logged and skipped.
func (w *BlockWatcher) ImportAll(ctx context.Context) (int, error) {
	matches, err := filepath.Glob(filepath.Join(w.dir, "*.json"))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, path := range matches {
		if _, err := w.blocks.ImportFile(ctx, path); err != nil {
			w.log.WithError(err).WithField("file", filepath.Base(path)).Warn("import block file")
			continue
		}
		n++
	}
	return n, nil
}

// Start imports the existing files and begins watching for changes.
func (w *BlockWatcher) Start(ctx context.Context) error {
	w.Stop()
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create block dir: %w", err)
	}
	if n, err := w.ImportAll(ctx); err != nil {
		return err
	} else if n > 0 {
		w.log.WithField("count", n).Info("imported block files")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.watcher = watcher
	w.watchCancel = cancel
	w.mu.Unlock()

	go w.loop(watchCtx, watcher)
	w.log.Info("watching block library")
	return nil
}

func (w *BlockWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}

// schedule debounces imports of path.
func (w *BlockWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(watchDebounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		b, err := w.blocks.ImportFile(ctx, path)
		if err != nil {
			w.log.WithError(err).WithField("file", filepath.Base(path)).Warn("import block file")
			return
		}
		w.log.WithField("block", b.ID).Info("block file imported")
	})
}

// Stop ends the watch and cancels pending imports.
func (w *BlockWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watchCancel != nil {
		w.watchCancel()
		w.watchCancel = nil
	}
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
