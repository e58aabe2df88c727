package coach

import (
	"fmt"
	"testing"

	"github.com/mkendall/stride/internal/models"
)

func dayRows(metrics []struct{ ratio, div float64 }) []*models.Activity {
	var rows []*models.Activity
	for i, m := range metrics {
		rows = append(rows, &models.Activity{
			Date:                 fmt.Sprintf("2026-06-%02d", i+1),
			AcuteChronicRatio:    m.ratio,
			NormalizedDivergence: m.div,
		})
	}
	return rows
}

func hasFlag(flags []PatternFlag, severity string) bool {
	for _, f := range flags {
		if f.Severity == severity {
			return true
		}
	}
	return false
}

func TestScanPatterns(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		if flags := ScanPatterns(nil, 1.3); len(flags) != 0 {
			t.Errorf("flags = %v, want none", flags)
		}
	})

	t.Run("quiet week raises nothing", func(t *testing.T) {
		rows := dayRows(make([]struct{ ratio, div float64 }, 7)) // all zeros
		if flags := ScanPatterns(rows, 1.3); len(flags) != 0 {
			t.Errorf("flags = %v, want none", flags)
		}
	})

	t.Run("five of seven days over the risk ratio", func(t *testing.T) {
		metrics := []struct{ ratio, div float64 }{
			{1.4, 0}, {1.4, 0}, {1.0, 0}, {1.4, 0}, {1.4, 0}, {1.0, 0}, {1.4, 0},
		}
		flags := ScanPatterns(dayRows(metrics), 1.3)
		if !hasFlag(flags, FlagRed) {
			t.Errorf("flags = %v, want red", flags)
		}
	})

	t.Run("trimp-only breaches count toward the risk rule", func(t *testing.T) {
		// The external ratio stays healthy while the internal one climbs;
		// either side over the threshold marks the day.
		var rows []*models.Activity
		for i := 0; i < 7; i++ {
			trimpRatio := 1.0
			if i != 2 && i != 5 {
				trimpRatio = 1.4
			}
			rows = append(rows, &models.Activity{
				Date:                   fmt.Sprintf("2026-06-%02d", i+1),
				AcuteChronicRatio:      1.0,
				TrimpAcuteChronicRatio: trimpRatio,
			})
		}
		flags := ScanPatterns(rows, 1.3)
		if !hasFlag(flags, FlagRed) {
			t.Errorf("flags = %v, want red for 5 internal-load breaches", flags)
		}
	})

	t.Run("six-day negative divergence run is red", func(t *testing.T) {
		metrics := []struct{ ratio, div float64 }{
			{1.0, 0.1}, {1.0, -0.1}, {1.0, -0.1}, {1.0, -0.1}, {1.0, -0.1}, {1.0, -0.1}, {1.0, -0.1},
		}
		flags := ScanPatterns(dayRows(metrics), 1.3)
		if !hasFlag(flags, FlagRed) {
			t.Errorf("flags = %v, want red for a 6-day run", flags)
		}
	})

	t.Run("exactly five negative days is a warning", func(t *testing.T) {
		metrics := []struct{ ratio, div float64 }{
			{1.0, 0.1}, {1.0, 0.1}, {1.0, -0.1}, {1.0, -0.1}, {1.0, -0.1}, {1.0, -0.1}, {1.0, -0.1},
		}
		flags := ScanPatterns(dayRows(metrics), 1.3)
		if !hasFlag(flags, FlagWarning) || hasFlag(flags, FlagRed) {
			t.Errorf("flags = %v, want warning only", flags)
		}
	})

	t.Run("broken run does not count", func(t *testing.T) {
		// Negative days exist but the most recent day is positive.
		metrics := []struct{ ratio, div float64 }{
			{1.0, -0.1}, {1.0, -0.1}, {1.0, -0.1}, {1.0, -0.1}, {1.0, -0.1}, {1.0, -0.1}, {1.0, 0.1},
		}
		flags := ScanPatterns(dayRows(metrics), 1.3)
		if hasFlag(flags, FlagRed) || hasFlag(flags, FlagWarning) {
			t.Errorf("flags = %v, want no divergence flags when the run is broken", flags)
		}
	})

	t.Run("three positive days is a positive flag", func(t *testing.T) {
		metrics := []struct{ ratio, div float64 }{
			{1.0, 0}, {1.0, 0}, {1.0, 0}, {1.0, 0}, {1.0, 0.1}, {1.0, 0.1}, {1.0, 0.1},
		}
		flags := ScanPatterns(dayRows(metrics), 1.3)
		if !hasFlag(flags, FlagPositive) {
			t.Errorf("flags = %v, want positive", flags)
		}
	})

	t.Run("duplicate rows per day collapse", func(t *testing.T) {
		// Two activities on the same date share the day's aggregates; the
		// ratio count must treat them as one day.
		var rows []*models.Activity
		for i := 0; i < 4; i++ {
			rows = append(rows,
				&models.Activity{Date: fmt.Sprintf("2026-06-%02d", i+1), AcuteChronicRatio: 1.4},
				&models.Activity{Date: fmt.Sprintf("2026-06-%02d", i+1), AcuteChronicRatio: 1.4},
			)
		}
		flags := ScanPatterns(rows, 1.3)
		if hasFlag(flags, FlagRed) {
			t.Errorf("flags = %v, 4 distinct days must not trip the 5-day rule", flags)
		}
	})
}
