package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"evidentia/internal/logging"
	"evidentia/internal/queue"
)

// videoExtensions is the allow-list of container formats picked up by
// discovery. Everything else in the directory is ignored.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mkv":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".flv":  true,
}

// IsVideoFile reports whether the filename carries a recognized extension.
func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// Scanner registers source recordings from a directory as pending items.
type Scanner struct {
	store  *queue.Store
	logger *slog.Logger
}

// NewScanner builds a scanner over the given store.
func NewScanner(store *queue.Store, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{store: store, logger: logger.With(logging.String(logging.FieldComponent, "ingest"))}
}

// Scan walks the directory once and returns the number of newly registered
// items. Recordings whose filename is already known are skipped.
func (s *Scanner) Scan(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read source directory: %w", err)
	}

	added := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsVideoFile(entry.Name()) {
			continue
		}
		registered, err := s.Register(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			return added, err
		}
		if registered {
			added++
		}
	}
	return added, nil
}

// Register adds a single recording as a pending item. It returns false when
// the filename is already tracked.
func (s *Scanner) Register(ctx context.Context, path string) (bool, error) {
	name := filepath.Base(path)
	if !IsVideoFile(name) {
		return false, nil
	}

	existing, err := s.store.FindByName(ctx, name)
	if err != nil {
		return false, err
	}
	if existing != nil {
		s.logger.Debug("recording already tracked",
			logging.String("item_name", name),
			logging.Int64(logging.FieldItemID, existing.ID),
		)
		return false, nil
	}

	publishedAt := resolvePublishedAt(name, path)
	item, err := s.store.NewItem(ctx, name, path, publishedAt)
	if err != nil {
		return false, fmt.Errorf("register %s: %w", name, err)
	}
	s.logger.Info("recording registered",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("item_name", name),
		logging.String(logging.FieldEventType, "item_registered"),
	)
	return true, nil
}

// resolvePublishedAt prefers the timestamp encoded in the filename and falls
// back to the file's modification time.
func resolvePublishedAt(name, path string) *time.Time {
	if when, ok := PublishedAtFromName(name); ok {
		return &when
	}
	if info, err := os.Stat(path); err == nil {
		mtime := info.ModTime()
		return &mtime
	}
	return nil
}
