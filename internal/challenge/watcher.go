package challenge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reimports a challenge file into a Controller whenever it changes.
type Watcher struct {
	ctrl   *Controller
	path   string
	logger *zap.Logger
	fs     *fsnotify.Watcher

	closeOnce sync.Once
	closeErr  error
}

// NewWatcher watches the directory holding path, so files replaced by
// rename are picked up too.
func NewWatcher(ctrl *Controller, path string, logger *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve challenge file: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		if cerr := fw.Close(); cerr != nil {
			// Best-effort cleanup; the add error is what matters.
			_ = cerr
		}
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{ctrl: ctrl, path: abs, logger: logger, fs: fw}, nil
}

// Reload imports the file once.
func (w *Watcher) Reload() (ImportResult, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to read challenge file: %w", err)
	}
	return w.ctrl.Import(data), nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			res, err := w.Reload()
			if err != nil {
				w.logger.Warn("challenge reload failed", zap.Error(err))
				continue
			}
			w.logger.Info("challenges reloaded", zap.Int("imported", res.Imported), zap.Int("rejected", len(res.Errors)))
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.fs.Close()
	})
	return w.closeErr
}
