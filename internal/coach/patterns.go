package coach

import (
	"fmt"
	"sort"

	"github.com/mkendall/stride/internal/models"
)

// Flag severities for pattern scanning.
const (
	FlagRed      = "red"
	FlagWarning  = "warning"
	FlagPositive = "positive"
)

// PatternFlag is one signal found by scanning recent aggregate history.
type PatternFlag struct {
	Severity string
	Message  string
}

// dayMetrics collapses the per-activity rows of one date into the shared
// aggregate values (identical across rows for a date).
type dayMetrics struct {
	date       string
	ratio      float64
	trimpRatio float64
	divergence float64
}

func collapseByDay(activities []*models.Activity) []dayMetrics {
	seen := map[string]dayMetrics{}
	for _, a := range activities {
		seen[a.Date] = dayMetrics{
			date:       a.Date,
			ratio:      a.AcuteChronicRatio,
			trimpRatio: a.TrimpAcuteChronicRatio,
			divergence: a.NormalizedDivergence,
		}
	}
	days := make([]dayMetrics, 0, len(seen))
	for _, d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date < days[j].date })
	return days
}

// ScanPatterns examines up to 14 days of history (ascending) and returns the
// signals the prompt should surface:
//   - red when 5 or more of the last 7 days exceeded the high-risk ratio on
//     either the load or the TRIMP side
//   - red when the most recent run of negative divergence (< −0.05) is 6+ days
//   - warning when that run is exactly 5 days
//   - positive when the most recent 3+ days all have divergence > +0.05
func ScanPatterns(activities []*models.Activity, highRisk float64) []PatternFlag {
	days := collapseByDay(activities)
	var flags []PatternFlag
	if len(days) == 0 {
		return flags
	}

	last7 := days
	if len(last7) > 7 {
		last7 = last7[len(last7)-7:]
	}
	overRisk := 0
	for _, d := range last7 {
		if d.ratio > highRisk || d.trimpRatio > highRisk {
			overRisk++
		}
	}
	if overRisk >= 5 {
		flags = append(flags, PatternFlag{FlagRed,
			fmt.Sprintf("%d of the last 7 days exceeded the high-risk acute:chronic ratio (%.2f)", overRisk, highRisk)})
	}

	// Run lengths counted backwards from the most recent day.
	negRun := 0
	for i := len(days) - 1; i >= 0 && days[i].divergence < -0.05; i-- {
		negRun++
	}
	switch {
	case negRun >= 6:
		flags = append(flags, PatternFlag{FlagRed,
			fmt.Sprintf("%d consecutive days of negative divergence: internal cost is outpacing external load", negRun)})
	case negRun == 5:
		flags = append(flags, PatternFlag{FlagWarning,
			"5 consecutive days of negative divergence: watch for accumulating fatigue"})
	}

	posRun := 0
	for i := len(days) - 1; i >= 0 && days[i].divergence > 0.05; i-- {
		posRun++
	}
	if posRun >= 3 {
		flags = append(flags, PatternFlag{FlagPositive,
			fmt.Sprintf("%d consecutive days of positive divergence: fitness is absorbing the load well", posRun)})
	}

	return flags
}
