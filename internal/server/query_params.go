package server

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var errInvalidQueryValue = errors.New("invalid_query_value")

func parseOptionalBool(value string) (*bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, errInvalidQueryValue
	}
	return &parsed, nil
}

// parseOptionalTime accepts RFC3339 or YYYY-MM-DD. A bare date used as an upper
// bound covers the whole day.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, value, time.UTC)
	if err != nil {
		return nil, errInvalidQueryValue
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}
