package models

import (
	"math"
	"strings"
	"time"
)

// isUniqueViolation checks if a SQLite error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (errContains(err, "UNIQUE constraint failed") || errContains(err, "constraint failed: UNIQUE"))
}

// errContains checks whether an error's message contains the given substring.
func errContains(err error, substr string) bool {
	return err != nil && strings.Contains(err.Error(), substr)
}

// normalizeDate trims any time suffix from a date string (e.g. "2025-01-01T00:00:00Z" → "2025-01-01").
func normalizeDate(d string) string {
	if len(d) >= 10 {
		return d[:10]
	}
	return d
}

// Round2 rounds a load or TRIMP value to two decimals. All such values are
// rounded at persistence time so reads are stable across recomputation.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatInstant renders a timestamp for storage. RFC3339Nano keeps ordering
// comparisons exact when two writes land within the same second.
func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseInstant reads a stored timestamp back. Falls back to the zero time on
// rows written before timestamps were normalized.
func parseInstant(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
