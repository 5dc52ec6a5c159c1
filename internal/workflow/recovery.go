package workflow

import (
	"context"
	"log/slog"
	"os"

	"evidentia/internal/logging"
	"evidentia/internal/queue"
)

// recoverInterrupted runs at startup. Items left in a processing status by a
// crashed run are rolled back to a resumable status, then the extracted ones
// are verified against the filesystem: an extracted item whose audio artifact
// vanished restarts from pending.
func (m *Manager) recoverInterrupted(ctx context.Context) error {
	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		m.logger.Info("rolled back interrupted items",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "recovery"),
		)
	}

	extracted, err := m.store.ItemsByStatus(ctx, queue.StatusExtracted)
	if err != nil {
		return err
	}
	for _, item := range extracted {
		if item.AudioFile != "" {
			if _, statErr := os.Stat(item.AudioFile); statErr == nil {
				continue
			}
		}
		item.AudioFile = ""
		item.Status = queue.StatusPending
		if err := m.store.Update(ctx, item); err != nil {
			return err
		}
		m.logger.Info("audio artifact missing; restarting item from scratch",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("item_name", item.Name),
			logging.String(logging.FieldEventType, "recovery"),
		)
	}
	return nil
}

// cleanupArtifact deletes the item's transient audio file, if any. Cleanup
// problems are logged and never escalate: the artifact is disposable and the
// item outcome must not depend on it.
func (m *Manager) cleanupArtifact(logger *slog.Logger, item *queue.Item) {
	if item.AudioFile == "" {
		return
	}
	if err := os.Remove(item.AudioFile); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove audio artifact",
			logging.String("audio_file", item.AudioFile),
			logging.Error(err),
		)
	}
	item.AudioFile = ""
}
