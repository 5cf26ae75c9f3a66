package ingest

import (
	"strings"
	"time"
)

const (
	germanLayout = "2.1.2006"
	isoLayout    = "2006-1-2"
)

// Day-first fallbacks tried after the two primary layouts.
var lenientLayouts = []string{
	"2.1.06",
	"2. 1. 2006",
	"2/1/2006",
	"2/1/06",
	"2-1-2006",
	"2-1-06",
	"2 1 2006",
	"2. January 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"2-Jan-06",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2006/1/2",
	"2006.1.2",
	"20060102",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2.1.2006 15:04",
	"January 2006",
	"Jan 2006",
	"1/2006",
	"1.2006",
	"1-2006",
	"2006-1",
	"2006",
}

// ParseJoinDate interprets a free-form join date, preferring German
// day.month.year, then ISO, then day-first heuristics.
func ParseJoinDate(raw string) (time.Time, bool) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{germanLayout, isoLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range lenientLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
