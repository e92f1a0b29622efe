package adapters

import (
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{
			name:     "RFC3339",
			input:    "2025-06-15T10:30:00Z",
			expected: time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:     "RFC3339 with offset",
			input:    "2025-06-15T12:30:00+02:00",
			expected: time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:     "datetime without zone",
			input:    "2025-06-15 10:30:00",
			expected: time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:     "date only",
			input:    "2025-06-15",
			expected: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "relative duration",
			input:    "36h",
			expected: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "empty means no cutoff",
			input:    "  ",
			expected: time.Time{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSince(tt.input, now)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
		})
	}
}

func TestParseSinceRejectsGarbage(t *testing.T) {
	for _, input := range []string{"yesterday", "-2h", "2025-13-45"} {
		_, err := ParseSince(input, time.Now())
		require.Error(t, err, input)
		assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err), input)
	}
}
