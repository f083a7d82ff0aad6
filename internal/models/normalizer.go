package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned when no supported layout matches
var ErrInvalidTimestamp = errors.New("invalid timestamp format")

// SupportedTimestampFormats lists formats we attempt to parse
var SupportedTimestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
}

// ParseMetricType normalizes user input into a MetricType
func ParseMetricType(s string) (MetricType, error) {
	m := MetricType(normalizeToken(s))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: unknown metric type %q", ErrInvalidArgument, s)
	}
	return m, nil
}

// ParseSeverity normalizes user input into a Severity
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(normalizeToken(s))
	if !sev.IsValid() {
		return "", fmt.Errorf("%w: unknown severity %q", ErrInvalidArgument, s)
	}
	return sev, nil
}

// ParseAlertType normalizes user input into an AlertType
func ParseAlertType(s string) (AlertType, error) {
	t := AlertType(normalizeToken(s))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: unknown alert type %q", ErrInvalidArgument, s)
	}
	return t, nil
}

// ParseTimestamp attempts to parse a timestamp string into time.Time
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)

	for _, format := range SupportedTimestampFormats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidTimestamp
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
