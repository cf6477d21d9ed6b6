package timex

import (
	"fmt"
	"strings"
	"time"
)

// isoLayouts are tried in order. Zone-less values are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseISO parses the ISO-8601 timestamps WOPI clients echo back, e.g.
// "2011-02-24T16:16:37.300000Z" or "2022-04-08T08:29:01.355".
func ParseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// FormatISO renders t in UTC with millisecond precision, the form returned
// to clients as LastModifiedTime.
func FormatISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// TruncateMillis drops everything below the millisecond.
func TruncateMillis(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
