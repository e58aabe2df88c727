package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Recommendation is the stored coaching guidance for one target date. At
// most one row exists per (athlete, target date); a newer generation
// replaces the prior one only when it is strictly informed by a more recent
// autopsy — that decision lives in the coach pipeline, which calls
// SaveRecommendation only after making it.
type Recommendation struct {
	ID         int64
	AthleteID  int64
	GeneratedAt time.Time
	TargetDate string

	DailyRecommendation  string
	WeeklyRecommendation string
	PatternInsights      string
	RawResponse          string

	IsAutopsyInformed bool
	AutopsyCount      int
	AvgAlignmentScore float64

	MetricsSnapshot string // JSON document captured at generation time
}

func scanRecommendation(row interface{ Scan(...any) error }) (*Recommendation, error) {
	r := &Recommendation{}
	var generated string
	var informed int
	err := row.Scan(&r.ID, &r.AthleteID, &generated, &r.TargetDate,
		&r.DailyRecommendation, &r.WeeklyRecommendation, &r.PatternInsights, &r.RawResponse,
		&informed, &r.AutopsyCount, &r.AvgAlignmentScore, &r.MetricsSnapshot)
	if err != nil {
		return nil, err
	}
	r.GeneratedAt = parseInstant(generated)
	r.IsAutopsyInformed = informed == 1
	return r, nil
}

const recommendationColumns = `id, athlete_id, generation_date, target_date,
	daily_recommendation, weekly_recommendation, pattern_insights, raw_response,
	is_autopsy_informed, autopsy_count, avg_alignment_score, metrics_snapshot`

// SaveRecommendation inserts or overwrites the row for (athlete, target
// date). The uniqueness invariant is carried by the table constraint.
func SaveRecommendation(db *sql.DB, r *Recommendation) error {
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}
	informed := 0
	if r.IsAutopsyInformed {
		informed = 1
	}
	snapshot := r.MetricsSnapshot
	if snapshot == "" {
		snapshot = "{}"
	}

	_, err := db.Exec(`INSERT INTO llm_recommendations
		(athlete_id, generation_date, target_date, daily_recommendation, weekly_recommendation,
		 pattern_insights, raw_response, is_autopsy_informed, autopsy_count, avg_alignment_score, metrics_snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(athlete_id, target_date) DO UPDATE SET
			generation_date = excluded.generation_date,
			daily_recommendation = excluded.daily_recommendation,
			weekly_recommendation = excluded.weekly_recommendation,
			pattern_insights = excluded.pattern_insights,
			raw_response = excluded.raw_response,
			is_autopsy_informed = excluded.is_autopsy_informed,
			autopsy_count = excluded.autopsy_count,
			avg_alignment_score = excluded.avg_alignment_score,
			metrics_snapshot = excluded.metrics_snapshot`,
		r.AthleteID, formatInstant(r.GeneratedAt), normalizeDate(r.TargetDate),
		r.DailyRecommendation, r.WeeklyRecommendation, r.PatternInsights, r.RawResponse,
		informed, r.AutopsyCount, r.AvgAlignmentScore, snapshot)
	if err != nil {
		return fmt.Errorf("models: save recommendation for athlete %d target %s: %w", r.AthleteID, r.TargetDate, err)
	}
	return nil
}

// GetRecommendation retrieves the row for a target date, or ErrNotFound.
func GetRecommendation(db *sql.DB, athleteID int64, targetDate string) (*Recommendation, error) {
	row := db.QueryRow(`SELECT `+recommendationColumns+` FROM llm_recommendations
		WHERE athlete_id = ? AND target_date = ?`, athleteID, normalizeDate(targetDate))
	r, err := scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get recommendation for athlete %d target %s: %w", athleteID, targetDate, err)
	}
	return r, nil
}

// LatestRecommendation returns the most recently generated row for an
// athlete, or ErrNotFound.
func LatestRecommendation(db *sql.DB, athleteID int64) (*Recommendation, error) {
	row := db.QueryRow(`SELECT `+recommendationColumns+` FROM llm_recommendations
		WHERE athlete_id = ? ORDER BY generation_date DESC LIMIT 1`, athleteID)
	r, err := scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: latest recommendation for athlete %d: %w", athleteID, err)
	}
	return r, nil
}
