package state

import (
	"fmt"
	"time"
)

// timeFormat is the canonical UTC timestamp layout stored in TEXT columns.
// Millisecond precision, lexicographically sortable, DATE()-compatible.
const timeFormat = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		// Tolerate second-precision rows written by SQLite defaults.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}
