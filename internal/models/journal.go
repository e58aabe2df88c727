package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidObservation is returned when observation values fall outside
// their allowed ranges. Nothing is persisted.
var ErrInvalidObservation = errors.New("invalid observation values")

// JournalEntry holds an athlete's subjective observations for one day:
// energy (1–5), session RPE (1–10), pain percentage (multiples of 20 within
// [0,100]) and free-text notes. Saving observations for a completed day is
// what triggers autopsy generation.
type JournalEntry struct {
	AthleteID      int64
	Date           string
	EnergyLevel    int
	RPEScore       int
	PainPercentage int
	Notes          sql.NullString
	UpdatedAt      time.Time
}

// UpsertJournalEntry validates and stores the observations for a date,
// replacing any previous entry.
func UpsertJournalEntry(db *sql.DB, athleteID int64, date string, energy, rpe, pain int, notes string) (*JournalEntry, error) {
	if energy < 1 || energy > 5 {
		return nil, fmt.Errorf("%w: energy level %d not in [1,5]", ErrInvalidObservation, energy)
	}
	if rpe < 1 || rpe > 10 {
		return nil, fmt.Errorf("%w: rpe %d not in [1,10]", ErrInvalidObservation, rpe)
	}
	if pain < 0 || pain > 100 || pain%20 != 0 {
		return nil, fmt.Errorf("%w: pain percentage %d not a multiple of 20 in [0,100]", ErrInvalidObservation, pain)
	}

	var notesVal sql.NullString
	if notes != "" {
		notesVal = sql.NullString{String: notes, Valid: true}
	}

	_, err := db.Exec(`INSERT INTO journal_entries (athlete_id, date, energy_level, rpe_score, pain_percentage, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(athlete_id, date) DO UPDATE SET
			energy_level = excluded.energy_level,
			rpe_score = excluded.rpe_score,
			pain_percentage = excluded.pain_percentage,
			notes = excluded.notes,
			updated_at = CURRENT_TIMESTAMP`,
		athleteID, normalizeDate(date), energy, rpe, pain, notesVal)
	if err != nil {
		return nil, fmt.Errorf("models: upsert journal entry for athlete %d: %w", athleteID, err)
	}

	return GetJournalEntry(db, athleteID, date)
}

// GetJournalEntry retrieves the observations for a date, or ErrNotFound.
func GetJournalEntry(db *sql.DB, athleteID int64, date string) (*JournalEntry, error) {
	e := &JournalEntry{}
	var updated string
	err := db.QueryRow(`SELECT athlete_id, date, energy_level, rpe_score, pain_percentage, notes, updated_at
		FROM journal_entries WHERE athlete_id = ? AND date = ?`,
		athleteID, normalizeDate(date)).Scan(
		&e.AthleteID, &e.Date, &e.EnergyLevel, &e.RPEScore, &e.PainPercentage, &e.Notes, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get journal entry for athlete %d date %s: %w", athleteID, date, err)
	}
	e.UpdatedAt = parseInstant(updated)
	return e, nil
}
