package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses an optional, non-negative duration. Empty is 0.
// path names the field in error messages ("youtube.timeout").
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// MustDuration is ParseDurationField for values already checked by Validate.
func MustDuration(raw string) time.Duration {
	d, _ := ParseDurationField("", raw)
	return d
}
