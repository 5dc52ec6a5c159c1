package report

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"

	"evidentia/internal/queue"
)

// DefaultTextFileName is the conventional name of the compiled text report.
const DefaultTextFileName = "todos_los_resumenes.txt"

// Entry is one recording's contribution to the compiled report.
type Entry struct {
	Date       time.Time
	Name       string
	Title      string
	Summary    string
	Transcript string
}

// Options controls report contents.
type Options struct {
	IncludeTranscripts bool
}

var titleCaser = cases.Title(xlanguage.Und)

// Collect loads the ready items in chronological order and shapes them into
// report entries.
func Collect(ctx context.Context, store *queue.Store) ([]Entry, error) {
	items, err := store.ListOrderedByPublishedAt(ctx, queue.StatusReady)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{
			Date:       item.DisplayDate(),
			Name:       item.Name,
			Title:      TitleFromName(item.Name),
			Summary:    strings.TrimSpace(item.Summary),
			Transcript: strings.TrimSpace(item.Transcript),
		})
	}
	return entries, nil
}

// TitleFromName turns a recording filename into a readable heading: the
// extension is dropped, separators become spaces, and words are title-cased.
func TitleFromName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return name
	}
	return titleCaser.String(base)
}
