package models

import (
	"fmt"
	"time"
)

// timeLayout is RFC3339 with a fixed-width nanosecond fraction, always UTC.
// The fixed width matters: stored timestamps are compared lexicographically
// (ORDER BY created_at), and RFC3339Nano drops trailing zeros, which would
// sort "…:05Z" after "…:05.5Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// EncodeTime formats t for storage.
func EncodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime is the inverse of EncodeTime. It also accepts timestamps with
// shorter fractions, so rows written before the fixed-width layout still load.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
