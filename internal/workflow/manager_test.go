package workflow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"evidentia/internal/config"
	"evidentia/internal/ingest"
	"evidentia/internal/logging"
	"evidentia/internal/queue"
	"evidentia/internal/services/openai"
	"evidentia/internal/testsupport"
	"evidentia/internal/workflow"
)

// fakeAPI serves transcription and summarization endpoints with canned
// responses and counts the calls it receives. A non-zero transcribeStatus
// turns the transcription endpoint into a failing one.
type fakeAPI struct {
	transcript       string
	summary          string
	transcribeStatus int
	transcribeHits   atomic.Int64
	summarizeHits    atomic.Int64
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		f.transcribeHits.Add(1)
		if f.transcribeStatus != 0 {
			w.WriteHeader(f.transcribeStatus)
			_, _ = w.Write([]byte(`{"error":{"message":"audio payload rejected"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": f.transcript})
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.summarizeHits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": f.summary}},
			},
		})
	})
	return mux
}

func newTestManager(t *testing.T, cfg *config.Config, store *queue.Store, api *fakeAPI) *workflow.Manager {
	t.Helper()

	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	client := openai.New(cfg, openai.WithBaseURL(server.URL))
	stages, err := workflow.NewStages(cfg, client)
	if err != nil {
		t.Fatalf("NewStages failed: %v", err)
	}
	return workflow.NewManager(cfg, store, logging.NewNop(), stages)
}

func writeSourceRecording(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), "videos", name)
	testsupport.WriteWAV(t, path, 16000, 1, make([]int16, 1600))
	return path
}

func TestProcessOnceRunsItemToReady(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExtractor("wav"))
	store := testsupport.MustOpenStore(t, cfg)

	source := writeSourceRecording(t, cfg, "hearing.mp4")
	item := testsupport.NewItem(t, store, "hearing.mp4", source)

	api := &fakeAPI{
		transcript: "The parties discussed the settlement terms.",
		summary:    "The recording documents a settlement discussion.",
	}
	manager := newTestManager(t, cfg, store, api)

	if err := manager.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}

	final, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != queue.StatusReady {
		t.Fatalf("expected ready, got %s (error: %s)", final.Status, final.ErrorMessage)
	}
	if final.Transcript != api.transcript {
		t.Fatalf("unexpected transcript: %q", final.Transcript)
	}
	if final.Summary != api.summary {
		t.Fatalf("unexpected summary: %q", final.Summary)
	}
	if final.AudioFile != "" {
		t.Fatalf("expected audio artifact cleared, got %q", final.AudioFile)
	}

	// The transient artifact is gone from the staging dir too.
	entries, err := os.ReadDir(cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".wav" {
			t.Fatalf("stale audio artifact left behind: %s", entry.Name())
		}
	}
}

func TestProcessOnceIsolatesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExtractor("wav"))
	store := testsupport.MustOpenStore(t, cfg)

	good1 := testsupport.NewItem(t, store, "a.mp4", writeSourceRecording(t, cfg, "a.mp4"))

	// Not a WAV payload: extraction will fail for this item only.
	badSource := filepath.Join(testsupport.BaseDir(cfg), "videos", "b.mp4")
	testsupport.WriteFile(t, badSource, 512)
	bad := testsupport.NewItem(t, store, "b.mp4", badSource)

	good2 := testsupport.NewItem(t, store, "c.mp4", writeSourceRecording(t, cfg, "c.mp4"))

	api := &fakeAPI{transcript: "Testimony text.", summary: "Summary text."}
	manager := newTestManager(t, cfg, store, api)

	if err := manager.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}

	ctx := context.Background()
	for _, id := range []int64{good1.ID, good2.ID} {
		final, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if final.Status != queue.StatusReady {
			t.Fatalf("item %d: expected ready, got %s (error: %s)", id, final.Status, final.ErrorMessage)
		}
	}

	failed, err := store.GetByID(ctx, bad.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.ErrorMessage == "" {
		t.Fatal("expected a persisted error message")
	}
	if failed.AudioFile != "" {
		t.Fatalf("expected audio artifact cleared on failure, got %q", failed.AudioFile)
	}
}

func TestProcessOnceEmptyTranscriptSkipsSummaryCall(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExtractor("wav"))
	store := testsupport.MustOpenStore(t, cfg)

	source := writeSourceRecording(t, cfg, "silent.mp4")
	item := testsupport.NewItem(t, store, "silent.mp4", source)

	api := &fakeAPI{transcript: "", summary: "should never be requested"}
	manager := newTestManager(t, cfg, store, api)

	if err := manager.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}

	final, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != queue.StatusReady {
		t.Fatalf("expected ready, got %s (error: %s)", final.Status, final.ErrorMessage)
	}
	if final.Summary != openai.EmptyTranscriptSummary {
		t.Fatalf("unexpected summary: %q", final.Summary)
	}
	if api.summarizeHits.Load() != 0 {
		t.Fatalf("expected no summarize calls, got %d", api.summarizeHits.Load())
	}
}

func TestProcessOnceResumesFromTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExtractor("wav"))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, store, "resumed.mp4", "/gone/resumed.mp4")
	item.Status = queue.StatusSummarizing
	item.Transcript = "Previously transcribed statement."
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	api := &fakeAPI{summary: "Summary of the recovered transcript."}
	manager := newTestManager(t, cfg, store, api)

	if err := manager.ProcessOnce(ctx); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}

	final, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != queue.StatusReady {
		t.Fatalf("expected ready, got %s (error: %s)", final.Status, final.ErrorMessage)
	}
	if final.Summary != api.summary {
		t.Fatalf("unexpected summary: %q", final.Summary)
	}
	// The source file never existed at its recorded path, proving the stage
	// machine resumed from the transcript rather than re-extracting.
	if api.transcribeHits.Load() != 0 {
		t.Fatalf("expected no transcribe calls, got %d", api.transcribeHits.Load())
	}
}

func TestProcessOnceCleansArtifactOnTranscriptionFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExtractor("wav"))
	store := testsupport.MustOpenStore(t, cfg)

	source := writeSourceRecording(t, cfg, "rejected.mp4")
	item := testsupport.NewItem(t, store, "rejected.mp4", source)

	api := &fakeAPI{transcribeStatus: http.StatusBadRequest}
	manager := newTestManager(t, cfg, store, api)

	if err := manager.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}

	final, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Fatal("expected a persisted error message")
	}
	if final.AudioFile != "" {
		t.Fatalf("expected audio artifact cleared on failure, got %q", final.AudioFile)
	}

	entries, err := os.ReadDir(cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".wav" {
			t.Fatalf("stale audio artifact left behind: %s", entry.Name())
		}
	}
}

func TestRescanDoesNotReprocessReadyItems(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExtractor("wav"))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	writeSourceRecording(t, cfg, "deposition.mp4")
	sourceDir := filepath.Join(testsupport.BaseDir(cfg), "videos")

	scanner := ingest.NewScanner(store, logging.NewNop())
	added, err := scanner.Scan(ctx, sourceDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 new item, got %d", added)
	}

	api := &fakeAPI{transcript: "Deposition testimony.", summary: "Deposition summary."}
	manager := newTestManager(t, cfg, store, api)
	if err := manager.ProcessOnce(ctx); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}

	transcribed := api.transcribeHits.Load()
	summarized := api.summarizeHits.Load()
	if transcribed == 0 || summarized == 0 {
		t.Fatalf("expected the first run to call the API, got %d/%d", transcribed, summarized)
	}

	// A second scan over the same directory registers nothing, and a second
	// processing run leaves the finished item untouched.
	added, err = scanner.Scan(ctx, sourceDir)
	if err != nil {
		t.Fatalf("rescan failed: %v", err)
	}
	if added != 0 {
		t.Fatalf("expected rescan to register nothing, got %d", added)
	}
	if err := manager.ProcessOnce(ctx); err != nil {
		t.Fatalf("second ProcessOnce failed: %v", err)
	}

	if got := api.transcribeHits.Load(); got != transcribed {
		t.Fatalf("transcribe calls changed on rerun: %d -> %d", transcribed, got)
	}
	if got := api.summarizeHits.Load(); got != summarized {
		t.Fatalf("summarize calls changed on rerun: %d -> %d", summarized, got)
	}

	final, err := store.FindByName(ctx, "deposition.mp4")
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if final == nil || final.Status != queue.StatusReady {
		t.Fatalf("expected the item to stay ready, got %#v", final)
	}
}

func TestProcessOnceLeavesItemsWaitingWhenStageUnhealthy(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExtractor("wav"), testsupport.WithAPIKey(""))
	store := testsupport.MustOpenStore(t, cfg)

	source := writeSourceRecording(t, cfg, "waiting.mp4")
	item := testsupport.NewItem(t, store, "waiting.mp4", source)

	api := &fakeAPI{transcript: "never reached", summary: "never reached"}
	manager := newTestManager(t, cfg, store, api)

	if err := manager.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}

	// Extraction needs no credential, so the item advances that far and then
	// waits for the API key instead of being failed.
	final, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != queue.StatusExtracted {
		t.Fatalf("expected extracted, got %s (error: %s)", final.Status, final.ErrorMessage)
	}
	if final.ErrorMessage != "" {
		t.Fatalf("expected no error message, got %q", final.ErrorMessage)
	}
	if api.transcribeHits.Load() != 0 {
		t.Fatalf("expected no transcribe calls, got %d", api.transcribeHits.Load())
	}
}

func TestRecoveryDemotesExtractedWithoutArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExtractor("wav"))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	kept := testsupport.NewItem(t, store, "kept.mp4", writeSourceRecording(t, cfg, "kept.mp4"))
	kept.Status = queue.StatusExtracted
	kept.AudioFile = filepath.Join(cfg.Paths.StagingDir, "kept.wav")
	testsupport.WriteWAV(t, kept.AudioFile, 16000, 1, make([]int16, 160))
	if err := store.Update(ctx, kept); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	lost := testsupport.NewItem(t, store, "lost.mp4", writeSourceRecording(t, cfg, "lost.mp4"))
	lost.Status = queue.StatusExtracted
	lost.AudioFile = filepath.Join(cfg.Paths.StagingDir, "lost.wav")
	if err := store.Update(ctx, lost); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	api := &fakeAPI{transcript: "Recovered testimony.", summary: "Recovered summary."}
	manager := newTestManager(t, cfg, store, api)

	if err := manager.ProcessOnce(ctx); err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}

	for _, id := range []int64{kept.ID, lost.ID} {
		final, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if final.Status != queue.StatusReady {
			t.Fatalf("item %d: expected ready, got %s (error: %s)", id, final.Status, final.ErrorMessage)
		}
	}
}

func TestStartAndStopProcessesPendingItems(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithExtractor("wav"), testsupport.WithConcurrency(2))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	const itemCount = 4
	ids := make([]int64, 0, itemCount)
	for i := 0; i < itemCount; i++ {
		name := fmt.Sprintf("clip-%d.mp4", i)
		item := testsupport.NewItem(t, store, name, writeSourceRecording(t, cfg, name))
		ids = append(ids, item.ID)
	}

	api := &fakeAPI{transcript: "Recorded statement.", summary: "Statement summary."}
	manager := newTestManager(t, cfg, store, api)

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	deadline := time.Now().Add(30 * time.Second)
	for {
		health, err := store.Health(ctx)
		if err != nil {
			t.Fatalf("Health failed: %v", err)
		}
		if health.Ready == itemCount {
			break
		}
		if health.Failed > 0 {
			t.Fatalf("unexpected failures: %#v", health)
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for processing: %#v", health)
		}
		time.Sleep(50 * time.Millisecond)
	}

	manager.Stop()
	for _, id := range ids {
		final, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if final.Status != queue.StatusReady {
			t.Fatalf("item %d: expected ready, got %s", id, final.Status)
		}
	}
}
