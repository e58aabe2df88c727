package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Autopsy grades one day's prescribed action against what the athlete
// actually did. At most one row exists per (athlete, date); regeneration
// overwrites in place.
type Autopsy struct {
	AthleteID        int64
	Date             string
	PrescribedAction string
	ActualActivities string
	AutopsyAnalysis  string
	AlignmentScore   float64 // clamped to [1,10]
	GeneratedAt      time.Time
}

// SaveAutopsy inserts or overwrites the autopsy for a date. The alignment
// score is clamped to [1,10] before persistence.
func SaveAutopsy(db *sql.DB, a *Autopsy) error {
	if a.GeneratedAt.IsZero() {
		a.GeneratedAt = time.Now()
	}
	score := a.AlignmentScore
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	_, err := db.Exec(`INSERT INTO ai_autopsies
		(athlete_id, date, prescribed_action, actual_activities, autopsy_analysis, alignment_score, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(athlete_id, date) DO UPDATE SET
			prescribed_action = excluded.prescribed_action,
			actual_activities = excluded.actual_activities,
			autopsy_analysis = excluded.autopsy_analysis,
			alignment_score = excluded.alignment_score,
			generated_at = excluded.generated_at`,
		a.AthleteID, normalizeDate(a.Date), a.PrescribedAction, a.ActualActivities,
		a.AutopsyAnalysis, score, formatInstant(a.GeneratedAt))
	if err != nil {
		return fmt.Errorf("models: save autopsy for athlete %d date %s: %w", a.AthleteID, a.Date, err)
	}
	return nil
}

func scanAutopsy(row interface{ Scan(...any) error }) (*Autopsy, error) {
	a := &Autopsy{}
	var generated string
	err := row.Scan(&a.AthleteID, &a.Date, &a.PrescribedAction, &a.ActualActivities,
		&a.AutopsyAnalysis, &a.AlignmentScore, &generated)
	if err != nil {
		return nil, err
	}
	a.GeneratedAt = parseInstant(generated)
	return a, nil
}

const autopsyColumns = `athlete_id, date, prescribed_action, actual_activities, autopsy_analysis, alignment_score, generated_at`

// GetAutopsy retrieves the autopsy for a date, or ErrNotFound.
func GetAutopsy(db *sql.DB, athleteID int64, date string) (*Autopsy, error) {
	row := db.QueryRow(`SELECT `+autopsyColumns+` FROM ai_autopsies
		WHERE athlete_id = ? AND date = ?`, athleteID, normalizeDate(date))
	a, err := scanAutopsy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get autopsy for athlete %d date %s: %w", athleteID, date, err)
	}
	return a, nil
}

// ListRecentAutopsies returns the newest autopsies for an athlete, most
// recent date first.
func ListRecentAutopsies(db *sql.DB, athleteID int64, limit int) ([]*Autopsy, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := db.Query(`SELECT `+autopsyColumns+` FROM ai_autopsies
		WHERE athlete_id = ? ORDER BY date DESC LIMIT ?`, athleteID, limit)
	if err != nil {
		return nil, fmt.Errorf("models: list autopsies for athlete %d: %w", athleteID, err)
	}
	defer rows.Close()

	var autopsies []*Autopsy
	for rows.Next() {
		a, err := scanAutopsy(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan autopsy: %w", err)
		}
		autopsies = append(autopsies, a)
	}
	return autopsies, rows.Err()
}

// AutopsyStats summarizes the learning history used to flag a
// recommendation as autopsy-informed.
type AutopsyStats struct {
	Count        int
	AvgAlignment float64
}

// GetAutopsyStats returns the count and mean alignment over all autopsies.
func GetAutopsyStats(db *sql.DB, athleteID int64) (AutopsyStats, error) {
	var s AutopsyStats
	err := db.QueryRow(`SELECT COUNT(*), COALESCE(AVG(alignment_score), 0)
		FROM ai_autopsies WHERE athlete_id = ?`, athleteID).Scan(&s.Count, &s.AvgAlignment)
	if err != nil {
		return s, fmt.Errorf("models: autopsy stats for athlete %d: %w", athleteID, err)
	}
	return s, nil
}

// LatestAutopsy returns the most recently generated autopsy, or ErrNotFound.
func LatestAutopsy(db *sql.DB, athleteID int64) (*Autopsy, error) {
	row := db.QueryRow(`SELECT `+autopsyColumns+` FROM ai_autopsies
		WHERE athlete_id = ? ORDER BY generated_at DESC LIMIT 1`, athleteID)
	a, err := scanAutopsy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: latest autopsy for athlete %d: %w", athleteID, err)
	}
	return a, nil
}
