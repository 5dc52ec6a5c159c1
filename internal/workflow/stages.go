package workflow

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"evidentia/internal/config"
	"evidentia/internal/media"
	"evidentia/internal/queue"
	"evidentia/internal/services"
	"evidentia/internal/services/openai"
	"evidentia/internal/stage"
)

// NewStages wires the standard stage handlers from loaded configuration.
func NewStages(cfg *config.Config, client *openai.Client) (Stages, error) {
	extractor, err := media.NewExtractor(cfg)
	if err != nil {
		return Stages{}, err
	}
	return Stages{
		Extract:    NewExtractStage(cfg, extractor),
		Transcribe: NewTranscribeStage(client),
		Summarize:  NewSummarizeStage(client),
	}, nil
}

// ExtractStage decodes the source recording into a staging-area WAV file.
type ExtractStage struct {
	cfg       *config.Config
	extractor media.Extractor
}

// NewExtractStage builds the extraction stage handler.
func NewExtractStage(cfg *config.Config, extractor media.Extractor) *ExtractStage {
	return &ExtractStage{cfg: cfg, extractor: extractor}
}

// Prepare verifies the source recording is still where ingestion found it.
func (s *ExtractStage) Prepare(ctx context.Context, item *queue.Item) error {
	if strings.TrimSpace(item.SourcePath) == "" {
		return services.Wrap(services.ErrValidation, "extract", "prepare", "item has no source path", nil)
	}
	if _, err := os.Stat(item.SourcePath); err != nil {
		return services.Wrap(services.ErrValidation, "extract", "prepare", "source recording missing", err)
	}
	return nil
}

// Execute writes the audio artifact and records its location on the item.
func (s *ExtractStage) Execute(ctx context.Context, item *queue.Item) error {
	if err := os.MkdirAll(s.cfg.Paths.StagingDir, 0o755); err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "ensure staging dir", "", err)
	}
	dest := filepath.Join(s.cfg.Paths.StagingDir, fmt.Sprintf("item-%d.wav", item.ID))
	if err := s.extractor.Extract(ctx, item.SourcePath, dest); err != nil {
		return err
	}
	item.AudioFile = dest
	return nil
}

// HealthCheck verifies the extraction backend is usable.
func (s *ExtractStage) HealthCheck(ctx context.Context) stage.Health {
	if s.extractor.Name() == "ffmpeg" {
		if _, err := exec.LookPath(s.cfg.FFmpegBinary()); err != nil {
			return stage.Unhealthy("extract", fmt.Sprintf("%s not found in PATH", s.cfg.FFmpegBinary()))
		}
	}
	return stage.Healthy("extract")
}

// TranscribeStage uploads the audio artifact for speech-to-text.
type TranscribeStage struct {
	client *openai.Client
}

// NewTranscribeStage builds the transcription stage handler.
func NewTranscribeStage(client *openai.Client) *TranscribeStage {
	return &TranscribeStage{client: client}
}

// Prepare verifies the extracted artifact exists before uploading.
func (s *TranscribeStage) Prepare(ctx context.Context, item *queue.Item) error {
	if strings.TrimSpace(item.AudioFile) == "" {
		return services.Wrap(services.ErrValidation, "transcribe", "prepare", "item has no audio artifact", nil)
	}
	if _, err := os.Stat(item.AudioFile); err != nil {
		return services.Wrap(services.ErrValidation, "transcribe", "prepare", "audio artifact missing", err)
	}
	return nil
}

// Execute stores the recognized text on the item.
func (s *TranscribeStage) Execute(ctx context.Context, item *queue.Item) error {
	text, err := s.client.Transcribe(ctx, item.AudioFile)
	if err != nil {
		return err
	}
	item.Transcript = text
	return nil
}

// HealthCheck reports whether the API credential is configured.
func (s *TranscribeStage) HealthCheck(ctx context.Context) stage.Health {
	if !s.client.HasCredential() {
		return stage.Unhealthy("transcribe", "OPENAI_API_KEY is not set")
	}
	return stage.Healthy("transcribe")
}

// SummarizeStage produces the formal summary from the stored transcript.
type SummarizeStage struct {
	client *openai.Client
}

// NewSummarizeStage builds the summarization stage handler.
func NewSummarizeStage(client *openai.Client) *SummarizeStage {
	return &SummarizeStage{client: client}
}

// Prepare is a no-op: an empty transcript is valid input and yields the
// empty-file summary without contacting the API.
func (s *SummarizeStage) Prepare(ctx context.Context, item *queue.Item) error {
	return nil
}

// Execute stores the summary on the item.
func (s *SummarizeStage) Execute(ctx context.Context, item *queue.Item) error {
	summary, err := s.client.Summarize(ctx, item.Transcript)
	if err != nil {
		return err
	}
	item.Summary = summary
	return nil
}

// HealthCheck reports whether the API credential is configured.
func (s *SummarizeStage) HealthCheck(ctx context.Context) stage.Health {
	if !s.client.HasCredential() {
		return stage.Unhealthy("summarize", "OPENAI_API_KEY is not set")
	}
	return stage.Healthy("summarize")
}
