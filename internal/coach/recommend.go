package coach

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mkendall/stride/internal/llm"
	"github.com/mkendall/stride/internal/metrics"
	"github.com/mkendall/stride/internal/models"
)

// LLM call budgets.
const (
	recommendTimeout = 30 * time.Second
	autopsyTimeout   = 90 * time.Second
)

// Coach runs the recommendation and autopsy pipelines for one database.
type Coach struct {
	db       *sql.DB
	provider llm.Provider

	temperature float64
	now         func() time.Time // injectable for tests
}

// New creates a Coach bound to a provider.
func New(db *sql.DB, provider llm.Provider) *Coach {
	return &Coach{
		db:          db,
		provider:    provider,
		temperature: llm.TemperatureFromSettings(db),
		now:         time.Now,
	}
}

// Snapshot is the metrics state captured into a recommendation row.
type Snapshot struct {
	Date                   string  `json:"date"`
	SevenDayAvgLoad        float64 `json:"seven_day_avg_load"`
	TwentyEightDayAvgLoad  float64 `json:"twentyeight_day_avg_load"`
	SevenDayAvgTrimp       float64 `json:"seven_day_avg_trimp"`
	TwentyEightDayAvgTrimp float64 `json:"twentyeight_day_avg_trimp"`
	AcuteChronicRatio      float64 `json:"acute_chronic_ratio"`
	TrimpAcuteChronicRatio float64 `json:"trimp_acute_chronic_ratio"`
	NormalizedDivergence   float64 `json:"normalized_divergence"`
}

// currentSnapshot reads the aggregates of the most recent date with rows at
// or before refDate.
func currentSnapshot(db *sql.DB, athleteID int64, refDate string) (Snapshot, error) {
	start, err := shiftDate(refDate, -27)
	if err != nil {
		return Snapshot{}, err
	}
	activities, err := models.ListActivitiesInRange(db, athleteID, start, refDate)
	if err != nil {
		return Snapshot{}, err
	}
	if len(activities) == 0 {
		return Snapshot{Date: refDate}, nil
	}
	last := activities[len(activities)-1]
	return Snapshot{
		Date:                   last.Date,
		SevenDayAvgLoad:        last.SevenDayAvgLoad,
		TwentyEightDayAvgLoad:  last.TwentyEightDayAvgLoad,
		SevenDayAvgTrimp:       last.SevenDayAvgTrimp,
		TwentyEightDayAvgTrimp: last.TwentyEightDayAvgTrimp,
		AcuteChronicRatio:      last.AcuteChronicRatio,
		TrimpAcuteChronicRatio: last.TrimpAcuteChronicRatio,
		NormalizedDivergence:   last.NormalizedDivergence,
	}, nil
}

func (s Snapshot) aggregates() models.DailyAggregates {
	return models.DailyAggregates{
		SevenDayAvgLoad:        s.SevenDayAvgLoad,
		TwentyEightDayAvgLoad:  s.TwentyEightDayAvgLoad,
		SevenDayAvgTrimp:       s.SevenDayAvgTrimp,
		TwentyEightDayAvgTrimp: s.TwentyEightDayAvgTrimp,
		AcuteChronicRatio:      s.AcuteChronicRatio,
		TrimpAcuteChronicRatio: s.TrimpAcuteChronicRatio,
		NormalizedDivergence:   s.NormalizedDivergence,
	}
}

func shiftDate(date string, n int) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("coach: parse date %q: %w", date, err)
	}
	return t.AddDate(0, 0, n).Format("2006-01-02"), nil
}

// localToday returns today's date in the athlete's zone. Target-date
// selection never computes "today" in UTC.
func (c *Coach) localToday(user *models.User) string {
	return c.now().In(user.Location()).Format("2006-01-02")
}

// TargetDate selects the date a new recommendation is for: tomorrow when
// today's workout is already done (or a rest day was explicitly requested),
// today otherwise.
func (c *Coach) TargetDate(user *models.User, restDayRequest bool) (string, error) {
	today := c.localToday(user)
	if restDayRequest {
		return shiftDate(today, 1)
	}
	done, err := models.HasRealActivityOnDate(c.db, user.ID, today)
	if err != nil {
		return "", err
	}
	if done {
		return shiftDate(today, 1)
	}
	return today, nil
}

// GenerateRecommendation produces guidance for the selected target date.
// When a recommendation for the target already exists and is newer than the
// most recent autopsy for yesterday, the existing row is returned untouched.
// LLM unavailability degrades to a default message instead of failing.
func (c *Coach) GenerateRecommendation(ctx context.Context, user *models.User, restDayRequest bool) (*models.Recommendation, error) {
	target, err := c.TargetDate(user, restDayRequest)
	if err != nil {
		return nil, err
	}

	fresh, err := c.isFresh(user, target)
	if err != nil {
		return nil, err
	}
	if fresh != nil {
		return fresh, nil
	}

	return c.generate(ctx, user, target, nil)
}

// isFresh returns the existing recommendation for the target when no newer
// autopsy invalidates it, nil when generation should proceed.
func (c *Coach) isFresh(user *models.User, target string) (*models.Recommendation, error) {
	existing, err := models.GetRecommendation(c.db, user.ID, target)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	yesterday, err := shiftDate(c.localToday(user), -1)
	if err != nil {
		return nil, err
	}
	autopsy, err := models.GetAutopsy(c.db, user.ID, yesterday)
	if errors.Is(err, models.ErrNotFound) {
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.GeneratedAt.After(autopsy.GeneratedAt) {
		return existing, nil
	}
	return nil, nil
}

// generate runs the full pipeline for a fixed target date. learning is
// non-nil only on autopsy-informed regeneration.
func (c *Coach) generate(ctx context.Context, user *models.User, target string, learning *learningContext) (*models.Recommendation, error) {
	today := c.localToday(user)

	// Recompute the last three days so a just-ingested activity is included.
	threeBack, err := shiftDate(today, -2)
	if err != nil {
		return nil, err
	}
	if err := metrics.UpdateWindow(c.db, user, threeBack, today); err != nil {
		return nil, fmt.Errorf("coach: refresh aggregates: %w", err)
	}

	snapshot, err := currentSnapshot(c.db, user.ID, today)
	if err != nil {
		return nil, err
	}

	monthBack, err := shiftDate(today, -27)
	if err != nil {
		return nil, err
	}
	recent, err := models.ListActivitiesInRange(c.db, user.ID, monthBack, today)
	if err != nil {
		return nil, err
	}

	twoWeeksBack, err := shiftDate(today, -13)
	if err != nil {
		return nil, err
	}
	var window []*models.Activity
	for _, a := range recent {
		if a.Date >= twoWeeksBack {
			window = append(window, a)
		}
	}

	thresholds := ThresholdsFor(user.RecommendationStyle)
	painPct := 0
	if entry, err := models.GetJournalEntry(c.db, user.ID, today); err == nil {
		painPct = entry.PainPercentage
	}

	autopsies, err := models.ListRecentAutopsies(c.db, user.ID, 3)
	if err != nil {
		return nil, err
	}

	prompt := composeRecommendationPrompt(promptInputs{
		user:       user,
		targetDate: target,
		thresholds: thresholds,
		assessment: Assess(snapshot.aggregates(), painPct, thresholds),
		snapshot:   snapshot,
		recent:     recent,
		flags:      ScanPatterns(window, thresholds.ACWRHighRisk),
		autopsies:  autopsies,
		learning:   learning,
	})

	callCtx, cancel := context.WithTimeout(ctx, recommendTimeout)
	defer cancel()
	resp, err := c.provider.Generate(callCtx, "", prompt, llm.Options{Temperature: c.temperature, MaxTokens: 2000})
	if err != nil {
		log.Printf("coach: recommendation generation for athlete %d target %s: %v", user.ID, target, err)
		return defaultRecommendation(user.ID, target), nil
	}

	parsed := ParseRecommendation(resp.Content)

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("coach: marshal snapshot: %w", err)
	}

	rec := &models.Recommendation{
		AthleteID:            user.ID,
		GeneratedAt:          c.now(),
		TargetDate:           target,
		DailyRecommendation:  parsed.Daily,
		WeeklyRecommendation: parsed.Weekly,
		PatternInsights:      parsed.Patterns,
		RawResponse:          resp.Content,
		MetricsSnapshot:      string(snapshotJSON),
	}
	if learning != nil {
		rec.IsAutopsyInformed = true
		rec.AutopsyCount = learning.Count
		rec.AvgAlignmentScore = learning.AvgAlignment
	}

	if err := models.SaveRecommendation(c.db, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// defaultRecommendation is the user-visible fallback when the model is
// unavailable. Not persisted; the next successful run replaces it.
func defaultRecommendation(athleteID int64, target string) *models.Recommendation {
	return &models.Recommendation{
		AthleteID:  athleteID,
		TargetDate: target,
		DailyRecommendation: fmt.Sprintf(
			"Coaching guidance for %s is temporarily unavailable. Train at an easy, conversational effort and keep the day flexible.", target),
		WeeklyRecommendation: "Hold your current weekly structure until guidance returns.",
		PatternInsights:      "Pattern analysis unavailable.",
	}
}
