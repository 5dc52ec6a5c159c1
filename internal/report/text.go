package report

import (
	"fmt"
	"io"
	"strings"
)

const dateLayout = "2006-01-02 15:04:05"

// WriteText renders the compiled report as plain text. Each entry carries the
// recording date, the video name, the summary, and optionally the full
// transcript.
func WriteText(w io.Writer, entries []Entry, opts Options) error {
	blocks := make([]string, 0, len(entries))
	for _, entry := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "Fecha: %s\n", entry.Date.Format(dateLayout))
		fmt.Fprintf(&b, "Video: %s\n\n", entry.Name)
		fmt.Fprintf(&b, "Descripción:\n\n%s", entry.Summary)
		if opts.IncludeTranscripts {
			fmt.Fprintf(&b, "\n\nTranscripción Completa:\n\n%s", entry.Transcript)
		}
		blocks = append(blocks, b.String())
	}

	_, err := io.WriteString(w, strings.Join(blocks, "\n\n"))
	return err
}
