package util

import (
	"strconv"
	"time"
)

var layouts = []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05", time.DateOnly}

// ParseTime tries RFC3339, RFC3339Nano, provider date-time and calendar date layouts, then
// unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// TruncateDay drops the clock part of t in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayRange returns the calendar window [now-days, now] aligned to UTC day boundaries.
func DayRange(now time.Time, days int) (time.Time, time.Time) {
	to := TruncateDay(now).AddDate(0, 0, 1).Add(-time.Second)
	from := TruncateDay(now).AddDate(0, 0, -days)
	return from, to
}
