package ingest

import (
	"strings"
	"time"
)

// importDateFormats is tried in order; the first match wins. Slash dates are
// read month-first, dotted dates day-first.
var importDateFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006 3:04 PM",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006 15:04",
	"02.01.2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseImportDate parses a CSV date cell. Values without a zone are UTC.
func ParseImportDate(text string) (time.Time, bool) {
	text = normalizeSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	text = strings.ReplaceAll(text, " am", " AM")
	text = strings.ReplaceAll(text, " pm", " PM")

	for _, format := range importDateFormats {
		if t, err := time.ParseInLocation(format, text, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
