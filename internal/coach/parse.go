package coach

import (
	"fmt"
	"strings"
)

// Recommendation section labels demanded from the model.
const (
	labelDaily    = "DAILY RECOMMENDATION"
	labelWeekly   = "WEEKLY PLANNING"
	labelPatterns = "PATTERN INSIGHTS"
)

// Autopsy section labels.
const (
	labelAlignment = "ALIGNMENT ASSESSMENT"
	labelPhysio    = "PHYSIOLOGICAL RESPONSE ANALYSIS"
	labelLearning  = "LEARNING INSIGHTS & TOMORROW'S IMPLICATIONS"
)

// ParsedRecommendation holds the three recommendation sections after the
// tolerant parse.
type ParsedRecommendation struct {
	Daily    string
	Weekly   string
	Patterns string
}

// headingLabel extracts the section label when a line is a heading, in
// either the `**LABEL:**` or `## LABEL` form. Returns "" otherwise.
func headingLabel(line string) string {
	s := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(s, "**"):
		s = strings.TrimPrefix(s, "**")
		if i := strings.Index(s, "**"); i >= 0 {
			s = s[:i]
		}
	case strings.HasPrefix(s, "#"):
		s = strings.TrimLeft(s, "# ")
	default:
		return ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), ":")
	return strings.ToUpper(strings.TrimSpace(s))
}

// splitSections walks the content line by line and buckets text under the
// most recent recognized heading. Text before any heading is returned under
// the empty key.
func splitSections(content string, labels []string) map[string]string {
	known := map[string]bool{}
	for _, l := range labels {
		known[l] = true
	}

	sections := map[string][]string{}
	current := ""
	for _, line := range strings.Split(content, "\n") {
		if label := headingLabel(line); label != "" && known[label] {
			current = label
			continue
		}
		sections[current] = append(sections[current], line)
	}

	out := map[string]string{}
	for label, lines := range sections {
		if text := strings.TrimSpace(strings.Join(lines, "\n")); text != "" {
			out[label] = text
		}
	}
	return out
}

// ParseRecommendation extracts the three labelled sections from a model
// response. Partial responses degrade instead of failing: a daily-only
// response gets safe placeholders for the other two, and a response with no
// recognizable labels is stored whole as the daily section.
func ParseRecommendation(content string) ParsedRecommendation {
	sections := splitSections(content, []string{labelDaily, labelWeekly, labelPatterns})

	p := ParsedRecommendation{
		Daily:    sections[labelDaily],
		Weekly:   sections[labelWeekly],
		Patterns: sections[labelPatterns],
	}

	if p.Daily == "" && p.Weekly == "" && p.Patterns == "" {
		p.Daily = strings.TrimSpace(content)
	}
	if p.Daily == "" {
		p.Daily = "Follow your current training plan and listen to your body today."
	}
	if p.Weekly == "" {
		p.Weekly = "Maintain your current weekly structure; a fresh weekly plan will be generated with the next sync."
	}
	if p.Patterns == "" {
		p.Patterns = "Not enough recent data for pattern analysis."
	}
	return p
}

// ParseAlignmentScore reads the leading `ALIGNMENT_SCORE: N/10` line,
// tolerating markdown wrapping, and clamps the result to [1,10]. Returns an
// error when no score line is found.
func ParseAlignmentScore(content string) (float64, error) {
	for _, line := range strings.Split(content, "\n") {
		s := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*#"))
		if !strings.HasPrefix(strings.ToUpper(s), "ALIGNMENT_SCORE") {
			continue
		}
		_, rest, ok := strings.Cut(s, ":")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		var score float64
		if _, err := fmt.Sscanf(rest, "%f/10", &score); err != nil {
			if _, err := fmt.Sscanf(rest, "%f", &score); err != nil {
				continue
			}
		}
		if score < 1 {
			score = 1
		}
		if score > 10 {
			score = 10
		}
		return score, nil
	}
	return 0, fmt.Errorf("coach: no alignment score in response")
}
