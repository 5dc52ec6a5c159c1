package media

import (
	"context"
	"fmt"

	"evidentia/internal/config"
)

// TargetSampleRate is the sample rate of extracted audio artifacts. Mono
// 16kHz PCM keeps uploads small without hurting transcription quality.
const TargetSampleRate = 16000

// Extractor produces a mono WAV audio artifact from a source recording.
type Extractor interface {
	// Extract writes the audio track of source to dest. On failure no
	// partial dest file is left behind.
	Extract(ctx context.Context, source, dest string) error
	// Name identifies the backend for logging.
	Name() string
}

// NewExtractor selects the extraction backend named by the configuration.
func NewExtractor(cfg *config.Config) (Extractor, error) {
	switch cfg.Workflow.Extractor {
	case config.ExtractorFFmpeg:
		return NewFFmpegExtractor(cfg.FFmpegBinary()), nil
	case config.ExtractorWAV:
		return NewWAVExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", cfg.Workflow.Extractor)
	}
}
