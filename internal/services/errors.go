package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtraction marks failures while decoding or transcoding source media.
	ErrExtraction = errors.New("extraction error")
	// ErrTranscription marks speech-to-text backend failures (auth, quota,
	// network, malformed response).
	ErrTranscription = errors.New("transcription service error")
	// ErrSummarization marks text-generation backend failures.
	ErrSummarization = errors.New("summarization service error")
	// ErrMissingCredential marks a missing API key detected before any
	// network call is made.
	ErrMissingCredential = errors.New("missing credential")
	// ErrStore marks persistence failures against the item store.
	ErrStore = errors.New("store error")
	// ErrValidation marks bad input detected before external work starts.
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails captures the classified view of a stage error for logging and
// failure persistence.
type ErrorDetails struct {
	Kind    string
	Message string
	Cause   error
}

var sentinelKinds = []struct {
	marker error
	kind   string
}{
	{ErrExtraction, "extraction"},
	{ErrTranscription, "transcription"},
	{ErrSummarization, "summarization"},
	{ErrMissingCredential, "missing_credential"},
	{ErrStore, "store"},
	{ErrValidation, "validation"},
}

// Details classifies an error against the sentinel taxonomy and strips the
// marker prefix from the message so persisted failures read cleanly.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: "unknown"}
	}
	details := ErrorDetails{Kind: "unknown", Message: err.Error(), Cause: err}
	for _, entry := range sentinelKinds {
		if errors.Is(err, entry.marker) {
			details.Kind = entry.kind
			details.Message = strings.TrimSpace(strings.TrimPrefix(details.Message, entry.marker.Error()+":"))
			break
		}
	}
	return details
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
