package util

import (
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// timeLayouts covers the publish-time formats seen across news APIs and feeds.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
}

// ParseTime accepts the layouts above or unix seconds. Unix input is returned
// in UTC; layouts keep the zone they carry.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseDate also accepts a bare YYYY-MM-DD (UTC midnight).
func ParseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(DateLayout, strings.TrimSpace(s)); err == nil {
		return t, true
	}
	return ParseTime(s)
}

// TruncateDay returns midnight UTC of t's UTC calendar day.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
