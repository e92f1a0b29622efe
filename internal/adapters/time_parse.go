package adapters

import (
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// ParseSince reads a history cutoff. It accepts absolute timestamps in the
// layouts below, a plain date, or a duration ("36h") counted back from now.
func ParseSince(value string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	if age, err := time.ParseDuration(trimmed); err == nil {
		if age < 0 {
			return time.Time{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("history cutoff must not be negative: " + trimmed)
		}
		return now.Add(-age).UTC(), nil
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05 -0700 MST",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("unrecognized time: " + trimmed)
}
