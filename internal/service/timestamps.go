package service

import (
	"strings"
	"time"
)

// Layouts seen in MySQL and SQLite timestamp columns.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp reads a nullable timestamp column as UTC. Empty or
// unparseable values yield the zero time.
func parseTimestamp(s *string) time.Time {
	if s == nil {
		return time.Time{}
	}
	v := strings.TrimSpace(*s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
