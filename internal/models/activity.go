package models

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrDuplicateActivity is returned when an activity row already exists for
// the same (athlete, activity id). Ingestion treats it as "skipped".
var ErrDuplicateActivity = errors.New("activity already exists")

// Sport type labels persisted on activity rows.
const (
	SportRunning  = "running"
	SportCycling  = "cycling"
	SportSwimming = "swimming"
	SportStrength = "strength"
	SportRest     = "rest"
	SportOther    = "other"
)

// TRIMP calculation method labels.
const (
	TrimpMethodAverage = "average"
	TrimpMethodStream  = "stream"
	TrimpMethodRestDay = "rest_day"
)

// Activity is one row of the activities table: a real provider activity
// (positive id) or a synthetic rest day (negative id). Real activities are
// immutable once persisted; rest days are replaced if a real activity later
// appears for their date.
type Activity struct {
	AthleteID  int64
	ActivityID int64
	Date       string // YYYY-MM-DD in the athlete's local zone
	Name       string
	SportType  string

	DistanceMiles     float64
	ElevationGainFeet float64
	DurationMinutes   float64
	AvgHeartRate      sql.NullFloat64
	MaxHeartRate      sql.NullFloat64

	ElevationLoadMiles float64
	TotalLoadMiles     float64
	Trimp              float64
	TimeInZone         [5]float64 // seconds per zone, zones 1–5

	TrimpCalculationMethod string
	HRStreamSampleCount    int
	TrimpProcessedAt       sql.NullString

	// Rolling aggregates for this activity's date. Identical across all rows
	// sharing the date.
	SevenDayAvgLoad         float64
	TwentyEightDayAvgLoad   float64
	SevenDayAvgTrimp        float64
	TwentyEightDayAvgTrimp  float64
	AcuteChronicRatio       float64
	TrimpAcuteChronicRatio  float64
	NormalizedDivergence    float64

	CyclingEquivalentMiles  float64
	SwimmingEquivalentMiles float64
	StrengthEquivalentMiles float64
	CyclingElevationFactor  float64
	AverageSpeedMph         float64

	Notes sql.NullString
}

const activityColumns = `athlete_id, activity_id, date, name, sport_type,
	distance_miles, elevation_gain_feet, duration_minutes, avg_heart_rate, max_heart_rate,
	elevation_load_miles, total_load_miles, trimp,
	time_in_zone1, time_in_zone2, time_in_zone3, time_in_zone4, time_in_zone5,
	trimp_calculation_method, hr_stream_sample_count, trimp_processed_at,
	seven_day_avg_load, twentyeight_day_avg_load, seven_day_avg_trimp, twentyeight_day_avg_trimp,
	acute_chronic_ratio, trimp_acute_chronic_ratio, normalized_divergence,
	cycling_equivalent_miles, swimming_equivalent_miles, strength_equivalent_miles,
	cycling_elevation_factor, average_speed_mph, notes`

func scanActivity(row interface{ Scan(...any) error }) (*Activity, error) {
	a := &Activity{}
	err := row.Scan(
		&a.AthleteID, &a.ActivityID, &a.Date, &a.Name, &a.SportType,
		&a.DistanceMiles, &a.ElevationGainFeet, &a.DurationMinutes, &a.AvgHeartRate, &a.MaxHeartRate,
		&a.ElevationLoadMiles, &a.TotalLoadMiles, &a.Trimp,
		&a.TimeInZone[0], &a.TimeInZone[1], &a.TimeInZone[2], &a.TimeInZone[3], &a.TimeInZone[4],
		&a.TrimpCalculationMethod, &a.HRStreamSampleCount, &a.TrimpProcessedAt,
		&a.SevenDayAvgLoad, &a.TwentyEightDayAvgLoad, &a.SevenDayAvgTrimp, &a.TwentyEightDayAvgTrimp,
		&a.AcuteChronicRatio, &a.TrimpAcuteChronicRatio, &a.NormalizedDivergence,
		&a.CyclingEquivalentMiles, &a.SwimmingEquivalentMiles, &a.StrengthEquivalentMiles,
		&a.CyclingElevationFactor, &a.AverageSpeedMph, &a.Notes,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// IsRestDay reports whether this row is a synthetic rest day.
func (a *Activity) IsRestDay() bool {
	return a.ActivityID < 0
}

// RestDayID derives the deterministic negative activity id for a synthetic
// rest day. The date component occupies eight digits, so two athletes with
// the same rest date always produce distinct ids.
func RestDayID(athleteID int64, date string) int64 {
	digits, _ := strconv.ParseInt(strings.ReplaceAll(normalizeDate(date), "-", ""), 10, 64)
	return -(athleteID*100_000_000 + digits)
}

// InsertActivity persists an activity row. Loads and TRIMP are rounded to
// two decimals at persistence time. Returns ErrDuplicateActivity when the
// (athlete, activity id) pair already exists.
func InsertActivity(db *sql.DB, a *Activity) error {
	_, err := db.Exec(`INSERT INTO activities (`+activityColumns+`) VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AthleteID, a.ActivityID, normalizeDate(a.Date), a.Name, a.SportType,
		Round2(a.DistanceMiles), Round2(a.ElevationGainFeet), Round2(a.DurationMinutes), a.AvgHeartRate, a.MaxHeartRate,
		Round2(a.ElevationLoadMiles), Round2(a.TotalLoadMiles), Round2(a.Trimp),
		a.TimeInZone[0], a.TimeInZone[1], a.TimeInZone[2], a.TimeInZone[3], a.TimeInZone[4],
		a.TrimpCalculationMethod, a.HRStreamSampleCount, a.TrimpProcessedAt,
		Round2(a.SevenDayAvgLoad), Round2(a.TwentyEightDayAvgLoad), Round2(a.SevenDayAvgTrimp), Round2(a.TwentyEightDayAvgTrimp),
		Round2(a.AcuteChronicRatio), Round2(a.TrimpAcuteChronicRatio), Round2(a.NormalizedDivergence),
		Round2(a.CyclingEquivalentMiles), Round2(a.SwimmingEquivalentMiles), Round2(a.StrengthEquivalentMiles),
		a.CyclingElevationFactor, Round2(a.AverageSpeedMph), a.Notes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateActivity
		}
		return fmt.Errorf("models: insert activity %d for athlete %d: %w", a.ActivityID, a.AthleteID, err)
	}
	return nil
}

// ActivityExists reports whether a row exists for (athlete, activity id).
func ActivityExists(db *sql.DB, athleteID, activityID int64) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM activities WHERE athlete_id = ? AND activity_id = ?`,
		athleteID, activityID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("models: activity exists check: %w", err)
	}
	return n > 0, nil
}

// GetActivitiesForDate returns all rows for an athlete on one local date.
func GetActivitiesForDate(db *sql.DB, athleteID int64, date string) ([]*Activity, error) {
	return queryActivities(db, `SELECT `+activityColumns+` FROM activities
		WHERE athlete_id = ? AND date = ? ORDER BY activity_id`, athleteID, normalizeDate(date))
}

// ListActivitiesInRange returns rows for [startDate, endDate], ascending by
// date. Both bounds are inclusive local dates.
func ListActivitiesInRange(db *sql.DB, athleteID int64, startDate, endDate string) ([]*Activity, error) {
	return queryActivities(db, `SELECT `+activityColumns+` FROM activities
		WHERE athlete_id = ? AND date >= ? AND date <= ?
		ORDER BY date, activity_id`, athleteID, normalizeDate(startDate), normalizeDate(endDate))
}

func queryActivities(db *sql.DB, query string, args ...any) ([]*Activity, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("models: query activities: %w", err)
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// HasRowOnDate reports whether any row (real or rest day) exists for a date.
func HasRowOnDate(db *sql.DB, athleteID int64, date string) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM activities WHERE athlete_id = ? AND date = ?`,
		athleteID, normalizeDate(date)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("models: row-on-date check: %w", err)
	}
	return n > 0, nil
}

// HasRealActivityOnDate reports whether a non-synthetic row exists for a date.
func HasRealActivityOnDate(db *sql.DB, athleteID int64, date string) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM activities
		WHERE athlete_id = ? AND date = ? AND activity_id > 0`,
		athleteID, normalizeDate(date)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("models: real-activity check: %w", err)
	}
	return n > 0, nil
}

// DeleteRestDay removes the synthetic rest-day row for a date, if present.
// Called when a real activity later appears for that date.
func DeleteRestDay(db *sql.DB, athleteID int64, date string) error {
	_, err := db.Exec(`DELETE FROM activities
		WHERE athlete_id = ? AND date = ? AND activity_id < 0`,
		athleteID, normalizeDate(date))
	if err != nil {
		return fmt.Errorf("models: delete rest day %s for athlete %d: %w", date, athleteID, err)
	}
	return nil
}

// InsertRestDay creates a synthetic zero-load rest day for a past date.
func InsertRestDay(db *sql.DB, athleteID int64, date string) error {
	a := &Activity{
		AthleteID:              athleteID,
		ActivityID:             RestDayID(athleteID, date),
		Date:                   normalizeDate(date),
		Name:                   "Rest Day",
		SportType:              SportRest,
		TrimpCalculationMethod: TrimpMethodRestDay,
		TrimpProcessedAt:       sql.NullString{String: formatInstant(time.Now()), Valid: true},
	}
	return InsertActivity(db, a)
}

// WindowSums returns the summed total load and TRIMP over [startDate,
// endDate]. Missing days simply contribute nothing, which is correct because
// past days are backfilled with zero-load rest days.
func WindowSums(db *sql.DB, athleteID int64, startDate, endDate string) (load, trimp float64, err error) {
	err = db.QueryRow(`SELECT COALESCE(SUM(total_load_miles), 0), COALESCE(SUM(trimp), 0)
		FROM activities WHERE athlete_id = ? AND date >= ? AND date <= ?`,
		athleteID, normalizeDate(startDate), normalizeDate(endDate)).Scan(&load, &trimp)
	if err != nil {
		return 0, 0, fmt.Errorf("models: window sums for athlete %d: %w", athleteID, err)
	}
	return load, trimp, nil
}

// CountActivitiesInRange returns the number of rows in a window. The
// enhanced engine uses it to pick a computation tier.
func CountActivitiesInRange(db *sql.DB, athleteID int64, startDate, endDate string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM activities WHERE athlete_id = ? AND date >= ? AND date <= ?`,
		athleteID, normalizeDate(startDate), normalizeDate(endDate)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("models: count activities for athlete %d: %w", athleteID, err)
	}
	return n, nil
}

// DailyAggregates is the set of rolling fields written back to every
// activity row of one date.
type DailyAggregates struct {
	SevenDayAvgLoad        float64
	TwentyEightDayAvgLoad  float64
	SevenDayAvgTrimp       float64
	TwentyEightDayAvgTrimp float64
	AcuteChronicRatio      float64
	TrimpAcuteChronicRatio float64
	NormalizedDivergence   float64
}

// UpdateDailyAggregates writes the rolling fields to all rows for a date.
// When multiple activities share the date, every row carries identical
// values. Idempotent by construction.
func UpdateDailyAggregates(db *sql.DB, athleteID int64, date string, agg DailyAggregates) error {
	_, err := db.Exec(`UPDATE activities SET
		seven_day_avg_load = ?, twentyeight_day_avg_load = ?,
		seven_day_avg_trimp = ?, twentyeight_day_avg_trimp = ?,
		acute_chronic_ratio = ?, trimp_acute_chronic_ratio = ?, normalized_divergence = ?
		WHERE athlete_id = ? AND date = ?`,
		Round2(agg.SevenDayAvgLoad), Round2(agg.TwentyEightDayAvgLoad),
		Round2(agg.SevenDayAvgTrimp), Round2(agg.TwentyEightDayAvgTrimp),
		Round2(agg.AcuteChronicRatio), Round2(agg.TrimpAcuteChronicRatio), Round2(agg.NormalizedDivergence),
		athleteID, normalizeDate(date))
	if err != nil {
		return fmt.Errorf("models: update aggregates for athlete %d date %s: %w", athleteID, date, err)
	}
	return nil
}
