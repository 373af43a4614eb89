package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var durationPattern = regexp.MustCompile(`^(\d+)([smhdw])$`)

// ParseDuration parses a duration string with support for days and weeks.
// Supports: s, m, h, d (days), w (weeks). Examples: "90d", "2w", "5m".
// Anything else falls back to time.ParseDuration.
func ParseDuration(s string) (time.Duration, error) {
	matches := durationPattern.FindStringSubmatch(s)
	if matches == nil {
		return time.ParseDuration(s)
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", matches[1])
	}

	day := 24 * time.Hour
	switch matches[2] {
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * day, nil
	case "w":
		return time.Duration(value) * 7 * day, nil
	default:
		return 0, fmt.Errorf("unknown time unit: %s", matches[2])
	}
}
