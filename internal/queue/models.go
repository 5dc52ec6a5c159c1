package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline item.
type Status string

const (
	StatusPending      Status = "pending"
	StatusExtracting   Status = "extracting"
	StatusExtracted    Status = "extracted"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusSummarizing  Status = "summarizing"
	StatusReady        Status = "ready"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusExtracting,
	StatusExtracted,
	StatusTranscribing,
	StatusTranscribed,
	StatusSummarizing,
	StatusReady,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusExtracting:   {},
	StatusExtracted:    {},
	StatusTranscribing: {},
	StatusTranscribed:  {},
	StatusSummarizing:  {},
}

// Item represents a recording persisted in SQLite.
type Item struct {
	ID           int64
	Name         string
	SourcePath   string
	PublishedAt  *time.Time
	AudioFile    string
	Transcript   string
	Summary      string
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[normalized]; !ok {
		return "", fmt.Errorf("unknown status %q", value)
	}
	return normalized, nil
}

// IsProcessing returns true when the status reflects an in-flight pipeline run.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight pipeline run.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// DisplayStatus collapses the fine-grained stage statuses into the four
// externally visible states: pending, processing, ready, error.
func (s Status) DisplayStatus() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "error"
	default:
		if IsProcessingStatus(s) {
			return "processing"
		}
		return string(s)
	}
}

// DisplayStatus reports the condensed state of the item.
func (i Item) DisplayStatus() string {
	return i.Status.DisplayStatus()
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
}

// DisplayDate resolves the date used for report ordering: publishedAt when
// the filename carried one, otherwise the creation timestamp.
func (i Item) DisplayDate() time.Time {
	if i.PublishedAt != nil {
		return *i.PublishedAt
	}
	return i.CreatedAt
}

// HealthSummary describes aggregated item counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Ready      int
	Failed     int
}
