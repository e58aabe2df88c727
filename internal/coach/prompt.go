package coach

import (
	"fmt"
	"strings"

	"github.com/mkendall/stride/internal/models"
)

// promptInputs carries everything the recommendation prompt needs.
type promptInputs struct {
	user       *models.User
	targetDate string
	thresholds Thresholds
	assessment Assessment
	snapshot   Snapshot
	recent     []*models.Activity
	flags      []PatternFlag
	autopsies  []*models.Autopsy
	learning   *learningContext // non-nil only on autopsy-informed regeneration
}

// learningContext summarizes the autopsy history injected into a
// regeneration prompt.
type learningContext struct {
	Count         int
	AvgAlignment  float64
	Trend         string
	LatestInsight string
}

// summarizeActivities renders recent activity rows as prompt lines, rest
// days collapsed to a single word.
func summarizeActivities(activities []*models.Activity) string {
	if len(activities) == 0 {
		return "No recent activities on record."
	}
	var b strings.Builder
	for _, a := range activities {
		if a.IsRestDay() {
			fmt.Fprintf(&b, "- %s: rest\n", a.Date)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s %q, %.1f mi, %.0f min, load %.2f, TRIMP %.1f\n",
			a.Date, a.SportType, a.Name, a.DistanceMiles, a.DurationMinutes, a.TotalLoadMiles, a.Trimp)
	}
	return strings.TrimRight(b.String(), "\n")
}

func summarizeFlags(flags []PatternFlag) string {
	if len(flags) == 0 {
		return "No pattern flags."
	}
	var b strings.Builder
	for _, f := range flags {
		fmt.Fprintf(&b, "- [%s] %s\n", strings.ToUpper(f.Severity), f.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

func summarizeAutopsies(autopsies []*models.Autopsy) string {
	if len(autopsies) == 0 {
		return "No prior workout analyses."
	}
	var b strings.Builder
	for _, a := range autopsies {
		fmt.Fprintf(&b, "- %s (alignment %.0f/10): %s\n", a.Date, a.AlignmentScore, excerpt(a.AutopsyAnalysis, 200))
	}
	return strings.TrimRight(b.String(), "\n")
}

// excerpt truncates text at a rune boundary with an ellipsis.
func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// composeRecommendationPrompt builds the single user message sent to the
// model for a recommendation.
func composeRecommendationPrompt(in promptInputs) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an endurance coach writing the training guidance for %s.\n\n", in.targetDate)

	fmt.Fprintf(&b, "ATHLETE THRESHOLDS (risk tolerance: %s)\n", in.user.RecommendationStyle)
	fmt.Fprintf(&b, "- High-risk acute:chronic ratio: %.2f\n", in.thresholds.ACWRHighRisk)
	fmt.Fprintf(&b, "- Maximum consecutive days without rest: %d\n", in.thresholds.MaxDaysWithoutRest)
	fmt.Fprintf(&b, "- Overtraining divergence threshold: %.2f\n\n", in.thresholds.DivergenceOvertraining)

	fmt.Fprintf(&b, "ASSESSMENT CATEGORY: %s\n\n", in.assessment)

	fmt.Fprintf(&b, "CURRENT METRICS (as of %s)\n", in.snapshot.Date)
	fmt.Fprintf(&b, "- 7-day avg load: %.2f mi/day, 28-day avg load: %.2f mi/day\n",
		in.snapshot.SevenDayAvgLoad, in.snapshot.TwentyEightDayAvgLoad)
	fmt.Fprintf(&b, "- 7-day avg TRIMP: %.1f, 28-day avg TRIMP: %.1f\n",
		in.snapshot.SevenDayAvgTrimp, in.snapshot.TwentyEightDayAvgTrimp)
	fmt.Fprintf(&b, "- ACWR: %.2f (load), %.2f (TRIMP), divergence: %.2f\n\n",
		in.snapshot.AcuteChronicRatio, in.snapshot.TrimpAcuteChronicRatio, in.snapshot.NormalizedDivergence)

	fmt.Fprintf(&b, "RECENT ACTIVITIES\n%s\n\n", summarizeActivities(in.recent))
	fmt.Fprintf(&b, "PATTERN FLAGS\n%s\n\n", summarizeFlags(in.flags))
	fmt.Fprintf(&b, "RECENT WORKOUT ANALYSES\n%s\n\n", summarizeAutopsies(in.autopsies))

	if in.learning != nil {
		fmt.Fprintf(&b, "LEARNING CONTEXT\n")
		fmt.Fprintf(&b, "- Analyses on record: %d, average alignment: %.1f/10, trend: %s\n",
			in.learning.Count, in.learning.AvgAlignment, in.learning.Trend)
		fmt.Fprintf(&b, "- Latest insight: %s\n\n", in.learning.LatestInsight)
		fmt.Fprintf(&b, "ADAPTIVE COACHING LOGIC\n")
		fmt.Fprintf(&b, "- Average alignment above 7: the athlete follows guidance well; reinforce and build on the current approach.\n")
		fmt.Fprintf(&b, "- Average alignment 4-7: guidance is partially landing; simplify the plan and reduce the number of asks.\n")
		fmt.Fprintf(&b, "- Average alignment below 4: the current approach is not working; restart with a minimal, concrete plan.\n\n")
	}

	fmt.Fprintf(&b, "%s\n\n", trainingReference)

	fmt.Fprintf(&b, "TONE: %s\n\n", ToneInstructions(in.user.CoachingStyleSpectrum))

	b.WriteString("Respond in exactly three labelled sections:\n")
	b.WriteString("**DAILY RECOMMENDATION:** the specific workout (or rest) for the target date.\n")
	b.WriteString("**WEEKLY PLANNING:** how the next seven days should be structured.\n")
	b.WriteString("**PATTERN INSIGHTS:** what the recent data says about this athlete's trajectory.\n")

	return b.String()
}

// composeAutopsyPrompt builds the grading prompt for one completed day.
func composeAutopsyPrompt(user *models.User, date, prescribed, actual string, entry *models.JournalEntry, snapshot Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an endurance coach grading the training day %s against what was prescribed.\n\n", date)
	fmt.Fprintf(&b, "PRESCRIBED ACTION\n%s\n\n", prescribed)
	fmt.Fprintf(&b, "ACTUAL ACTIVITY\n%s\n\n", actual)

	if entry != nil {
		fmt.Fprintf(&b, "ATHLETE OBSERVATIONS\n")
		fmt.Fprintf(&b, "- Energy: %d/5, session RPE: %d/10, pain: %d%%\n", entry.EnergyLevel, entry.RPEScore, entry.PainPercentage)
		if entry.Notes.Valid {
			fmt.Fprintf(&b, "- Notes: %s\n", entry.Notes.String)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "CURRENT METRICS\n")
	fmt.Fprintf(&b, "- ACWR: %.2f (load), %.2f (TRIMP), divergence: %.2f\n\n",
		snapshot.AcuteChronicRatio, snapshot.TrimpAcuteChronicRatio, snapshot.NormalizedDivergence)

	b.WriteString("Your response MUST begin with a line of the exact form `ALIGNMENT_SCORE: X/10` scoring how closely the actual day matched the prescription, followed by three labelled sections:\n")
	b.WriteString("**ALIGNMENT ASSESSMENT:** what matched and what diverged.\n")
	b.WriteString("**PHYSIOLOGICAL RESPONSE ANALYSIS:** how the athlete's body responded given the observations and metrics.\n")
	b.WriteString("**LEARNING INSIGHTS & TOMORROW'S IMPLICATIONS:** what this day teaches and how tomorrow should adjust.\n")

	return b.String()
}
