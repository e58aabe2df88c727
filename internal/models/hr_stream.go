package models

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// HRStream is an ordered sequence of heart-rate samples captured for one
// real activity. Persisted only after its parent activity row is committed
// (foreign key), and deleted with it.
type HRStream struct {
	ID         int64
	AthleteID  int64
	ActivityID int64
	Samples    []int
	SampleRate float64 // samples per second
}

// InsertHRStream stores a heart-rate stream for an activity.
func InsertHRStream(db *sql.DB, athleteID, activityID int64, samples []int, sampleRate float64) error {
	data, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("models: marshal hr samples: %w", err)
	}
	if sampleRate <= 0 {
		sampleRate = 1
	}

	_, err = db.Exec(`INSERT INTO hr_streams (athlete_id, activity_id, hr_data, sample_rate) VALUES (?, ?, ?, ?)`,
		athleteID, activityID, string(data), sampleRate)
	if err != nil {
		if isUniqueViolation(err) {
			return nil // stream already captured for this activity
		}
		return fmt.Errorf("models: insert hr stream for activity %d: %w", activityID, err)
	}
	return nil
}

// GetHRStream retrieves the stream for an activity, or ErrNotFound.
func GetHRStream(db *sql.DB, athleteID, activityID int64) (*HRStream, error) {
	s := &HRStream{}
	var data string
	err := db.QueryRow(`SELECT id, athlete_id, activity_id, hr_data, sample_rate
		FROM hr_streams WHERE athlete_id = ? AND activity_id = ?`,
		athleteID, activityID).Scan(&s.ID, &s.AthleteID, &s.ActivityID, &data, &s.SampleRate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get hr stream for activity %d: %w", activityID, err)
	}

	if err := json.Unmarshal([]byte(data), &s.Samples); err != nil {
		return nil, fmt.Errorf("models: decode hr samples for activity %d: %w", activityID, err)
	}
	return s, nil
}
