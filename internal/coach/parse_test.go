package coach

import (
	"strings"
	"testing"
)

func TestParseRecommendation(t *testing.T) {
	t.Run("bold headings", func(t *testing.T) {
		content := `**DAILY RECOMMENDATION:**
Easy 5 miles today.

**WEEKLY PLANNING:**
Keep Tuesday's workout, move the long run to Sunday.

**PATTERN INSIGHTS:**
Load ratio has been stable.`

		p := ParseRecommendation(content)
		if p.Daily != "Easy 5 miles today." {
			t.Errorf("daily = %q", p.Daily)
		}
		if !strings.Contains(p.Weekly, "long run to Sunday") {
			t.Errorf("weekly = %q", p.Weekly)
		}
		if !strings.Contains(p.Patterns, "stable") {
			t.Errorf("patterns = %q", p.Patterns)
		}
	})

	t.Run("markdown headings", func(t *testing.T) {
		content := `## Daily Recommendation
Rest completely today.

## Weekly Planning
Reduce volume by 20%.

## Pattern Insights
Divergence trending negative.`

		p := ParseRecommendation(content)
		if p.Daily != "Rest completely today." {
			t.Errorf("daily = %q", p.Daily)
		}
		if !strings.Contains(p.Weekly, "20%") {
			t.Errorf("weekly = %q", p.Weekly)
		}
	})

	t.Run("daily-only response gets placeholders", func(t *testing.T) {
		p := ParseRecommendation("**DAILY RECOMMENDATION:**\nTempo intervals.")
		if p.Daily != "Tempo intervals." {
			t.Errorf("daily = %q", p.Daily)
		}
		if p.Weekly == "" || p.Patterns == "" {
			t.Error("missing sections should be filled with placeholders")
		}
	})

	t.Run("unlabelled response stored whole as daily", func(t *testing.T) {
		p := ParseRecommendation("Just take it easy today, you earned it.")
		if p.Daily != "Just take it easy today, you earned it." {
			t.Errorf("daily = %q", p.Daily)
		}
		if p.Weekly == "" || p.Patterns == "" {
			t.Error("placeholders missing")
		}
	})
}

func TestParseAlignmentScore(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    float64
		wantErr bool
	}{
		{"plain", "ALIGNMENT_SCORE: 7/10\nrest of analysis", 7, false},
		{"decimal without denominator", "ALIGNMENT_SCORE: 6.5", 6.5, false},
		{"bold wrapped", "**ALIGNMENT_SCORE: 8/10**", 8, false},
		{"later line", "Some preamble.\nALIGNMENT_SCORE: 4/10", 4, false},
		{"clamped high", "ALIGNMENT_SCORE: 14/10", 10, false},
		{"clamped low", "ALIGNMENT_SCORE: 0/10", 1, false},
		{"missing", "No score here at all.", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAlignmentScore(tc.content)
			if tc.wantErr {
				if err == nil {
					t.Fatal("want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tc.want {
				t.Errorf("score = %v, want %v", got, tc.want)
			}
		})
	}
}
