package config

import (
	"fmt"
	"strings"
	"time"
)

// DurationOrDefault parses a duration string and falls back to defaultValue when empty.
func DurationOrDefault(value string, defaultValue string) (time.Duration, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		candidate = strings.TrimSpace(defaultValue)
	}
	if candidate == "" {
		return 0, fmt.Errorf("duration value is empty")
	}

	d, err := time.ParseDuration(candidate)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", candidate, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", candidate)
	}
	return d, nil
}

// OptionalDuration is DurationOrDefault for settings that can be switched off.
// "off", "never" and "0" all yield zero.
func OptionalDuration(value string, defaultValue string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "off", "never", "disabled", "0":
		return 0, nil
	}
	return DurationOrDefault(value, defaultValue)
}
