package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	dbDateTimeLayout = "2006-01-02 15:04:05"
	dateOnlyLayout   = "2006-01-02"
)

// Today returns the current date as YYYY-MM-DD.
func Today() string {
	return FormatDateOnly(time.Now())
}

// NowDateTime formats the current time for DATETIME columns.
func NowDateTime() string {
	return time.Now().Format(dbDateTimeLayout)
}

// FormatDateOnly formats a time as YYYY-MM-DD.
func FormatDateOnly(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateOnlyLayout)
}

// ParseUserDate parses incoming user-supplied date/time strings and
// normalises them to YYYY-MM-DD.
func ParseUserDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("empty date string")
	}

	layouts := []string{
		time.RFC3339,
		dbDateTimeLayout,
		dateOnlyLayout,
	}

	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.Format(dateOnlyLayout), nil
		}
	}

	return "", fmt.Errorf("unsupported date format: %s", value)
}

// NormalizeDateOnly best-effort converts a stored date string to YYYY-MM-DD.
// Unparseable values are passed through truncated, matching what the UI expects.
func NormalizeDateOnly(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	layouts := []string{
		time.RFC3339,
		time.RFC3339Nano,
		dbDateTimeLayout,
		dateOnlyLayout,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(dateOnlyLayout)
		}
	}
	if len(value) >= 10 {
		return value[:10]
	}
	return value
}
