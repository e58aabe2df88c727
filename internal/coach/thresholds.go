// Package coach produces daily and weekly training guidance, grades past
// guidance against what the athlete actually did, and feeds those grades
// back into the next generation.
package coach

import "github.com/mkendall/stride/internal/models"

// Thresholds are the personalized risk limits derived from the athlete's
// risk tolerance category.
type Thresholds struct {
	ACWRHighRisk           float64 // acute:chronic ratio above this is high risk
	MaxDaysWithoutRest     int
	DivergenceOvertraining float64 // divergence below this signals overtraining
}

// ThresholdsFor maps a risk tolerance category to its limits. Unknown
// categories get the balanced defaults.
func ThresholdsFor(style string) Thresholds {
	switch style {
	case models.RiskConservative:
		return Thresholds{ACWRHighRisk: 1.2, MaxDaysWithoutRest: 6, DivergenceOvertraining: -0.10}
	case models.RiskAdaptive:
		return Thresholds{ACWRHighRisk: 1.35, MaxDaysWithoutRest: 7, DivergenceOvertraining: -0.15}
	case models.RiskAggressive:
		return Thresholds{ACWRHighRisk: 1.5, MaxDaysWithoutRest: 8, DivergenceOvertraining: -0.20}
	default:
		return Thresholds{ACWRHighRisk: 1.3, MaxDaysWithoutRest: 7, DivergenceOvertraining: -0.15}
	}
}

// ToneInstructions maps the 0–100 coaching spectrum to prompt language.
func ToneInstructions(spectrum int) string {
	switch {
	case spectrum <= 25:
		return "Use a casual, relaxed tone. Keep it short and friendly, like a training buddy."
	case spectrum <= 50:
		return "Use a supportive, encouraging tone. Acknowledge effort and frame guidance positively."
	case spectrum <= 75:
		return "Use a motivational tone. Push the athlete toward their goals with energy and conviction."
	default:
		return "Use an analytical tone. Lead with the numbers and explain the physiological reasoning."
	}
}

// Assessment is the category chosen by the deterministic decision tree. It
// labels the prompt and selects the guidance emphasis.
type Assessment string

const (
	AssessSafety       Assessment = "SAFETY"
	AssessOvertraining Assessment = "OVERTRAINING"
	AssessACWRRisk     Assessment = "ACWR_RISK"
	AssessRecovery     Assessment = "RECOVERY"
	AssessProgression  Assessment = "PROGRESSION"
)

// Assess walks the decision tree in fixed priority order: safety first,
// then overtraining, elevated ACWR, recovery, and finally progression.
// painPct is the latest reported pain percentage, or 0 when none exists.
func Assess(agg models.DailyAggregates, painPct int, t Thresholds) Assessment {
	switch {
	case painPct >= 40:
		return AssessSafety
	case agg.NormalizedDivergence < t.DivergenceOvertraining && agg.TwentyEightDayAvgLoad > 0:
		return AssessOvertraining
	case agg.AcuteChronicRatio > t.ACWRHighRisk:
		return AssessACWRRisk
	case agg.AcuteChronicRatio > 0 && agg.AcuteChronicRatio < 0.8:
		return AssessRecovery
	default:
		return AssessProgression
	}
}
