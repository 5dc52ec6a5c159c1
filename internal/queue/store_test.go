package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"evidentia/internal/queue"
	"evidentia/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewItem(ctx, "hearing-01.mp4", "/videos/hearing-01.mp4", nil)
	if err != nil {
		t.Fatalf("NewItem failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Name != "hearing-01.mp4" {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}

	found, err := store.FindByName(ctx, "hearing-01.mp4")
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if found == nil || found.ID != item.ID {
		t.Fatalf("expected to find inserted item, got %#v", found)
	}
}

func TestNewItemRequiresName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.NewItem(context.Background(), "  ", "/videos/x.mp4", nil); err == nil {
		t.Fatal("expected error when name missing")
	}
}

func TestNewItemRejectsDuplicateName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewItem(ctx, "session.mp4", "/a/session.mp4", nil); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := store.NewItem(ctx, "session.mp4", "/b/session.mp4", nil); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
}

func TestFindByNameMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	found, err := store.FindByName(context.Background(), "absent.mp4")
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if found != nil {
		t.Fatalf("expected nil for unknown name, got %#v", found)
	}
}

func TestUpdatePersistsFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, store, "deposition.mp4", "/videos/deposition.mp4")

	item.Status = queue.StatusTranscribed
	item.AudioFile = "/tmp/deposition.wav"
	item.Transcript = "The witness stated the agreement was verbal."
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusTranscribed {
		t.Fatalf("expected transcribed, got %s", fetched.Status)
	}
	if fetched.Transcript != item.Transcript {
		t.Fatalf("transcript not persisted: %q", fetched.Transcript)
	}
	if fetched.AudioFile != "/tmp/deposition.wav" {
		t.Fatalf("audio file not persisted: %q", fetched.AudioFile)
	}
}

func TestUpsertInsertsAndReplaces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := &queue.Item{
		Name:   "statement.mp4",
		Status: queue.StatusPending,
	}
	if err := store.Upsert(ctx, item); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected Upsert to assign an ID")
	}

	item.Status = queue.StatusReady
	item.Summary = "Summary of recorded statement."
	if err := store.Upsert(ctx, item); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusReady || fetched.Summary != item.Summary {
		t.Fatalf("upsert did not replace fields: %#v", fetched)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected a single row after repeated upsert, got %d", len(items))
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	ready := testsupport.NewItem(t, store, "a.mp4", "/videos/a.mp4")
	ready.Status = queue.StatusReady
	if err := store.Update(ctx, ready); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	testsupport.NewItem(t, store, "b.mp4", "/videos/b.mp4")

	readyItems, err := store.List(ctx, queue.StatusReady)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(readyItems) != 1 || readyItems[0].Name != "a.mp4" {
		t.Fatalf("unexpected ready items: %#v", readyItems)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List all failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 items, got %d", len(all))
	}
}

func TestListOrderedByPublishedAt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	later := time.Date(2023, 6, 15, 10, 0, 0, 0, time.UTC)
	earlier := time.Date(2022, 1, 3, 9, 30, 0, 0, time.UTC)

	testsupport.NewItemPublished(t, store, "later.mp4", "/v/later.mp4", later)
	testsupport.NewItemPublished(t, store, "earlier.mp4", "/v/earlier.mp4", earlier)
	// No publication date: ordered by its creation time, which is after both.
	testsupport.NewItem(t, store, "undated.mp4", "/v/undated.mp4")

	items, err := store.ListOrderedByPublishedAt(ctx)
	if err != nil {
		t.Fatalf("ListOrderedByPublishedAt failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	order := []string{items[0].Name, items[1].Name, items[2].Name}
	want := []string{"earlier.mp4", "later.mp4", "undated.mp4"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected order: %v", order)
		}
	}
}

func TestClaimNextMovesOldestToProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewItem(t, store, "first.mp4", "/v/first.mp4")
	testsupport.NewItem(t, store, "second.mp4", "/v/second.mp4")

	transitions := []queue.StageTransition{
		{From: queue.StatusPending, To: queue.StatusExtracting},
	}
	claimed, err := store.ClaimNext(ctx, transitions)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest item claimed, got %#v", claimed)
	}
	if claimed.Status != queue.StatusExtracting {
		t.Fatalf("expected extracting, got %s", claimed.Status)
	}

	fetched, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusExtracting {
		t.Fatalf("claim not persisted: %s", fetched.Status)
	}
}

func TestClaimNextReturnsNilWhenEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	claimed, err := store.ClaimNext(context.Background(), []queue.StageTransition{
		{From: queue.StatusPending, To: queue.StatusExtracting},
	})
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected nil claim, got %#v", claimed)
	}
}

func TestClaimNextConcurrentWorkersClaimDistinctItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	const itemCount = 8
	for i := 0; i < itemCount; i++ {
		testsupport.NewItem(t, store, fmt.Sprintf("clip-%02d.mp4", i), fmt.Sprintf("/v/clip-%02d.mp4", i))
	}

	transitions := []queue.StageTransition{
		{From: queue.StatusPending, To: queue.StatusExtracting},
	}

	type result struct {
		id  int64
		err error
	}
	results := make(chan result, itemCount)
	for i := 0; i < itemCount; i++ {
		go func() {
			claimed, err := store.ClaimNext(ctx, transitions)
			if err != nil {
				results <- result{err: err}
				return
			}
			if claimed == nil {
				results <- result{err: fmt.Errorf("no item claimed")}
				return
			}
			results <- result{id: claimed.ID}
		}()
	}

	seen := make(map[int64]bool)
	for i := 0; i < itemCount; i++ {
		res := <-results
		if res.err != nil {
			t.Fatalf("claim error: %v", res.err)
		}
		if seen[res.id] {
			t.Fatalf("item %d claimed twice", res.id)
		}
		seen[res.id] = true
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name     string
		initial  queue.Status
		expected queue.Status
	}{
		{"extract-interrupted.mp4", queue.StatusExtracting, queue.StatusPending},
		{"transcribe-interrupted.mp4", queue.StatusTranscribing, queue.StatusExtracted},
		{"summarize-interrupted.mp4", queue.StatusSummarizing, queue.StatusTranscribed},
		{"finished.mp4", queue.StatusReady, queue.StatusReady},
		{"broken.mp4", queue.StatusFailed, queue.StatusFailed},
	}

	idByName := make(map[string]int64)
	for _, tc := range cases {
		item := testsupport.NewItem(t, store, tc.name, "/v/"+tc.name)
		item.Status = tc.initial
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update %s failed: %v", tc.name, err)
		}
		idByName[tc.name] = item.ID
	}

	reset, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if reset != 3 {
		t.Fatalf("expected 3 items reset, got %d", reset)
	}

	for _, tc := range cases {
		fetched, err := store.GetByID(ctx, idByName[tc.name])
		if err != nil {
			t.Fatalf("GetByID %s failed: %v", tc.name, err)
		}
		if fetched.Status != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, fetched.Status)
		}
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	failed := testsupport.NewItem(t, store, "broken.mp4", "/v/broken.mp4")
	failed.SetFailed("ffmpeg exited with code 1")
	failed.AudioFile = "/tmp/broken.wav"
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	healthy := testsupport.NewItem(t, store, "fine.mp4", "/v/fine.mp4")

	retried, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried item, got %d", retried)
	}

	fetched, err := store.GetByID(ctx, failed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", fetched.Status)
	}
	if fetched.ErrorMessage != "" || fetched.AudioFile != "" {
		t.Fatalf("expected error and audio file cleared: %#v", fetched)
	}

	// Retrying a non-failed item by id is a no-op.
	retried, err = store.RetryFailed(ctx, healthy.ID)
	if err != nil {
		t.Fatalf("RetryFailed by id failed: %v", err)
	}
	if retried != 0 {
		t.Fatalf("expected 0 retried items, got %d", retried)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{
		queue.StatusPending,
		queue.StatusExtracting,
		queue.StatusTranscribed,
		queue.StatusReady,
		queue.StatusReady,
		queue.StatusFailed,
	}
	for i, status := range statuses {
		item := testsupport.NewItem(t, store, fmt.Sprintf("v-%d.mp4", i), fmt.Sprintf("/v/v-%d.mp4", i))
		item.Status = status
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusReady] != 2 || stats[queue.StatusPending] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 6 || health.Pending != 1 || health.Processing != 2 || health.Ready != 2 || health.Failed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestRemoveAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.NewItem(t, store, "a.mp4", "/v/a.mp4")
	b := testsupport.NewItem(t, store, "b.mp4", "/v/b.mp4")
	b.Status = queue.StatusReady
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	removed, err := store.Remove(ctx, a.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected item removed")
	}
	removed, err = store.Remove(ctx, 9999)
	if err != nil {
		t.Fatalf("Remove missing failed: %v", err)
	}
	if removed {
		t.Fatal("expected no-op for unknown id")
	}

	cleared, err := store.ClearReady(ctx)
	if err != nil {
		t.Fatalf("ClearReady failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 ready item cleared, got %d", cleared)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected empty store, got %d items", len(remaining))
	}
}
