package testsupport

import (
	"context"
	"testing"
	"time"

	"evidentia/internal/config"
	"evidentia/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem creates a pending item for tests using the provided store.
func NewItem(t testing.TB, store *queue.Store, name, sourcePath string) *queue.Item {
	t.Helper()

	item, err := store.NewItem(context.Background(), name, sourcePath, nil)
	if err != nil {
		t.Fatalf("store.NewItem: %v", err)
	}
	return item
}

// NewItemPublished creates a pending item carrying a publication date.
func NewItemPublished(t testing.TB, store *queue.Store, name, sourcePath string, publishedAt time.Time) *queue.Item {
	t.Helper()

	item, err := store.NewItem(context.Background(), name, sourcePath, &publishedAt)
	if err != nil {
		t.Fatalf("store.NewItem: %v", err)
	}
	return item
}
