package utils

import (
	"strings"
	"time"
)

// ParseYMD parses a YYYY-MM-DD date at midnight UTC.
func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	// strip time to midnight UTC to match DATE semantics
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseOptionalYMD is ParseYMD for optional inputs: blank yields nil.
func ParseOptionalYMD(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseYMD(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
