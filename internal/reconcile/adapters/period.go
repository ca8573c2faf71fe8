package adapters

import (
	"strings"
	"time"
)

var periodLayouts = []string{time.RFC3339, "2006-01-02"}

// WeekContaining returns the ISO week (Monday 00:00 UTC, inclusive, to the
// following Monday, exclusive) that contains t.
func WeekContaining(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 7)
}

func periodFromMetadata(metadata map[string]string) (time.Time, time.Time, bool) {
	start, ok := parsePeriodBound(metadata["period_start"])
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := parsePeriodBound(metadata["period_end"])
	if !ok || !end.After(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func parsePeriodBound(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
