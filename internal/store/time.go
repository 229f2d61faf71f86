package store

import (
	"fmt"
	"strings"
	"time"
)

func parseTimeString(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}

	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02 15:04:05.999999999 -0700 MST", value); err == nil {
		return ts, nil
	}

	return time.Time{}, fmt.Errorf("invalid time format: %q", value)
}
