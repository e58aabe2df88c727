// Package metrics maintains the rolling acute/chronic training-load
// aggregates and the derived acute:chronic workload ratios.
package metrics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mkendall/stride/internal/models"
)

// Standard window lengths in days.
const (
	acuteDays   = 7
	chronicDays = 28
)

// addDays shifts a YYYY-MM-DD date string by n calendar days.
func addDays(date string, n int) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("metrics: parse date %q: %w", date, err)
	}
	return t.AddDate(0, 0, n).Format("2006-01-02"), nil
}

// ratio divides acute by chronic, returning 0 when the chronic side is 0.
func ratio(acute, chronic float64) float64 {
	if chronic == 0 {
		return 0
	}
	return acute / chronic
}

// Divergence computes the normalized gap between the external and internal
// ratios: (ext − int) / ((ext + int) / 2), 0 when both are 0.
func Divergence(external, internal float64) float64 {
	mean := (external + internal) / 2
	if mean == 0 {
		return 0
	}
	return (external - internal) / mean
}

// ComputeDay derives the standard 7/28-day aggregates for one date.
// Missing days contribute zero, which is exact because every past date is
// backfilled with a rest-day row.
func ComputeDay(db *sql.DB, athleteID int64, date string) (models.DailyAggregates, error) {
	var agg models.DailyAggregates

	acuteStart, err := addDays(date, -(acuteDays - 1))
	if err != nil {
		return agg, err
	}
	chronicStart, err := addDays(date, -(chronicDays - 1))
	if err != nil {
		return agg, err
	}

	acuteLoad, acuteTrimp, err := models.WindowSums(db, athleteID, acuteStart, date)
	if err != nil {
		return agg, err
	}
	chronicLoad, chronicTrimp, err := models.WindowSums(db, athleteID, chronicStart, date)
	if err != nil {
		return agg, err
	}

	agg.SevenDayAvgLoad = acuteLoad / acuteDays
	agg.TwentyEightDayAvgLoad = chronicLoad / chronicDays
	agg.SevenDayAvgTrimp = acuteTrimp / acuteDays
	agg.TwentyEightDayAvgTrimp = chronicTrimp / chronicDays
	agg.AcuteChronicRatio = ratio(agg.SevenDayAvgLoad, agg.TwentyEightDayAvgLoad)
	agg.TrimpAcuteChronicRatio = ratio(agg.SevenDayAvgTrimp, agg.TwentyEightDayAvgTrimp)
	agg.NormalizedDivergence = Divergence(agg.AcuteChronicRatio, agg.TrimpAcuteChronicRatio)

	return agg, nil
}

// UpdateDay recomputes the standard aggregates for one date and writes them
// to every activity row of that date. Idempotent: a second run produces
// identical fields.
func UpdateDay(db *sql.DB, athleteID int64, date string) error {
	agg, err := ComputeDay(db, athleteID, date)
	if err != nil {
		return err
	}
	return models.UpdateDailyAggregates(db, athleteID, date, agg)
}

// UpdateDayFor routes one date through the engine the athlete is flagged
// for: enhanced when enabled, standard otherwise.
func UpdateDayFor(db *sql.DB, user *models.User, date string) error {
	if user.ACWREnhancedEnabled {
		return UpdateDayEnhanced(db, user, date)
	}
	return UpdateDay(db, user.ID, date)
}

// UpdateWindow recomputes aggregates for every date in [startDate,
// endDate], strictly ascending: each date's write depends on prior
// rest-day inserts being present.
func UpdateWindow(db *sql.DB, user *models.User, startDate, endDate string) error {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return fmt.Errorf("metrics: parse window start %q: %w", startDate, err)
	}

	for d := start; ; d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		if date > endDate {
			return nil
		}
		if err := UpdateDayFor(db, user, date); err != nil {
			return err
		}
	}
}
