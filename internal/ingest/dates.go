package ingest

import (
	"regexp"
	"strconv"
	"time"
)

// Recording apps encode the capture date in the filename, each with its own
// convention. The patterns below cover the three producers seen in practice;
// anything else falls back to the file's modification time.
var (
	// ScreenRecording_06-15-2023 10-30-45.mp4 (month first)
	screenRecordingPattern = regexp.MustCompile(`ScreenRecording_(\d{1,2})-(\d{1,2})-(\d{4})[ _](\d{1,2})-(\d{1,2})(?:-(\d{1,2}))?`)
	// WhatsApp Video 2023-06-15 at 10.30.45.mp4
	whatsappPattern = regexp.MustCompile(`(?i)whatsapp.*?(\d{4})-(\d{1,2})-(\d{1,2}) at (\d{1,2})\.(\d{1,2})\.(\d{1,2})`)
	// VIDEO-2023-06-15-10-30-45.mp4
	videoPattern = regexp.MustCompile(`VIDEO-(\d{4})-(\d{1,2})-(\d{1,2})-(\d{1,2})-(\d{1,2})-(\d{1,2})`)
)

// PublishedAtFromName extracts the capture timestamp encoded in a recording
// filename. The second return value is false when no known pattern matches.
func PublishedAtFromName(name string) (time.Time, bool) {
	if m := screenRecordingPattern.FindStringSubmatch(name); m != nil {
		month, day, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
		hour, minute, sec := atoi(m[4]), atoi(m[5]), atoi(m[6])
		return buildDate(year, month, day, hour, minute, sec)
	}
	if m := whatsappPattern.FindStringSubmatch(name); m != nil {
		year, month, day := atoi(m[1]), atoi(m[2]), atoi(m[3])
		hour, minute, sec := atoi(m[4]), atoi(m[5]), atoi(m[6])
		return buildDate(year, month, day, hour, minute, sec)
	}
	if m := videoPattern.FindStringSubmatch(name); m != nil {
		year, month, day := atoi(m[1]), atoi(m[2]), atoi(m[3])
		hour, minute, sec := atoi(m[4]), atoi(m[5]), atoi(m[6])
		return buildDate(year, month, day, hour, minute, sec)
	}
	return time.Time{}, false
}

func buildDate(year, month, day, hour, minute, sec int) (time.Time, bool) {
	if year < 1970 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	if hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.Local), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
