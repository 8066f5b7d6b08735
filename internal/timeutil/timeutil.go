// Package timeutil parses audit timestamps and buckets them to the
// one-second resolution used by race detection and layering.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse reads an ISO8601 timestamp and returns a zone-less instant: the
// wall clock of the given offset, expressed in UTC. A trailing "Z" is
// treated as +00:00. ok is false for empty or unparseable input.
func Parse(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(value, "Z") || strings.HasSuffix(value, "z") {
		value = value[:len(value)-1] + "+00:00"
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return stripZone(t), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Bucket truncates t to whole seconds. The zero time has no bucket.
func Bucket(t time.Time) (time.Time, bool) {
	if t.IsZero() {
		return time.Time{}, false
	}
	return t.Truncate(time.Second), true
}

// FormatMillis renders t as HH:MM:SS.mmm, or "" for the zero time.
func FormatMillis(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s.%03d", t.Format("15:04:05"), t.Nanosecond()/int(time.Millisecond))
}
