package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"evidentia/internal/logging"
)

// settleDelay gives the producing process time to finish writing a file
// before the first read attempt.
const settleDelay = 500 * time.Millisecond

// Watcher monitors a directory and registers new recordings as they appear.
type Watcher struct {
	dir     string
	scanner *Scanner
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher builds a watcher over the given directory. Close it with Stop.
func NewWatcher(dir string, scanner *Scanner, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		dir:     dir,
		scanner: scanner,
		logger:  logger.With(logging.String(logging.FieldComponent, "ingest")),
		watcher: fsWatcher,
	}, nil
}

// Run performs an initial scan and then blocks, registering recordings as
// they are created or moved into the directory, until the context ends.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.scanner.Scan(ctx, w.dir); err != nil {
		return err
	}
	w.logger.Info("watching for new recordings", logging.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !IsVideoFile(event.Name) {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(settleDelay):
			}
			if _, err := w.scanner.Register(ctx, event.Name); err != nil {
				w.logger.Error("failed to register recording",
					logging.String("path", event.Name),
					logging.Error(err),
				)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher error", logging.Error(err))
		}
	}
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
