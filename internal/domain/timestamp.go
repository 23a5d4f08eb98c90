package domain

import (
	"strings"
	"time"
)

// TimestampLayout is the at-rest form of every timestamp in the store:
// a timezone-naive local wall-clock string with millisecond precision.
const TimestampLayout = "2006-01-02 15:04:05.000"

// DayLayout is the calendar-date prefix of TimestampLayout.
const DayLayout = "2006-01-02"

// ParseTimestamp decodes a stored timestamp string. Fractional seconds are
// optional so legacy rows written without milliseconds still parse.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(TimestampLayout, value, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02 15:04:05", value, time.Local)
}

// FormatTimestamp encodes an instant into the at-rest string form.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Day returns the YYYY-MM-DD prefix of a stored timestamp string.
func Day(value string) string {
	if len(value) < len(DayLayout) {
		return value
	}
	return value[:len(DayLayout)]
}

// TruncateSeconds drops the fractional-second suffix of a stored timestamp
// string. Sampling responses record promptedAt with milliseconds while the
// usage log records whole seconds; the reconstruction join compares the
// truncated forms.
func TruncateSeconds(value string) string {
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		return value[:idx]
	}
	return value
}
