package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mkendall/stride/internal/database"
	"github.com/mkendall/stride/internal/models"
	"github.com/mkendall/stride/internal/strava"
)

// Unit conversions from provider metric units.
const (
	metersPerMile  = 1609.344
	feetPerMeter   = 3.28084
	mphPerMeterSec = 2.2369362920544
)

// streamFetchDelay spaces per-activity stream fetches to respect the
// provider rate limit. Tests zero it.
var streamFetchDelay = time.Second

// ProviderClient is the slice of the Strava client the pipeline needs.
type ProviderClient interface {
	ListActivities(ctx context.Context, after, before time.Time) ([]strava.ActivitySummary, error)
	HeartRateStream(ctx context.Context, activityID int64) ([]int, error)
}

// Result summarizes one ingestion run.
type Result struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	RestDays  int `json:"rest_days"`
}

// Run pulls the athlete's activities for the local-date window [startDate,
// endDate], normalizes and persists each, then backfills synthetic rest
// days for uncovered past dates. Per-activity failures are isolated; only
// provider auth failures abort the batch.
func Run(ctx context.Context, db *sql.DB, user *models.User, client ProviderClient, startDate, endDate string) (Result, error) {
	var res Result
	loc := user.Location()

	start, err := time.ParseInLocation("2006-01-02", startDate, loc)
	if err != nil {
		return res, fmt.Errorf("ingest: parse window start %q: %w", startDate, err)
	}
	end, err := time.ParseInLocation("2006-01-02", endDate, loc)
	if err != nil {
		return res, fmt.Errorf("ingest: parse window end %q: %w", endDate, err)
	}

	// Expand the provider query one day on each side to absorb time-zone
	// edges, then filter back to the athlete's local window.
	after := start.AddDate(0, 0, -1)
	before := end.AddDate(0, 0, 2) // exclusive upper bound past the padded day

	summaries, err := client.ListActivities(ctx, after, before)
	if err != nil {
		if errors.Is(err, strava.ErrUnauthorized) {
			return res, err
		}
		return res, fmt.Errorf("ingest: list activities for athlete %d: %w", user.ID, err)
	}

	for _, summary := range summaries {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		localDate := summary.LocalDate()
		if localDate < startDate || localDate > endDate {
			continue
		}

		switch err := processOne(ctx, db, user, client, summary, localDate); {
		case err == nil:
			res.Processed++
		case errors.Is(err, errSkipped):
			res.Skipped++
		default:
			res.Failed++
			log.Printf("ingest: athlete %d activity %d: %v", user.ID, summary.ID, err)
		}
	}

	restDays, err := CoverRestDays(db, user, startDate, endDate, time.Now())
	if err != nil {
		return res, err
	}
	res.RestDays = restDays

	return res, nil
}

// errSkipped marks activities that were intentionally not ingested
// (unsupported label or already present).
var errSkipped = errors.New("skipped")

func processOne(ctx context.Context, db *sql.DB, user *models.User, client ProviderClient, s strava.ActivitySummary, localDate string) error {
	c := ClassifySport(s.Name, s.Type, s.SportType, s.Trainer)
	if !c.Supported {
		log.Printf("ingest: skipping unsupported activity %d (%s / %s)", s.ID, s.SportType, s.Name)
		return errSkipped
	}

	exists, err := models.ActivityExists(db, user.ID, s.ID)
	if err != nil {
		return err
	}
	if exists {
		return errSkipped
	}

	distanceMiles := s.Distance / metersPerMile
	elevationFeet := s.TotalElevationGain * feetPerMeter
	durationMinutes := float64(s.MovingTime) / 60.0
	avgSpeedMph := s.AverageSpeed * mphPerMeterSec
	if avgSpeedMph == 0 && durationMinutes > 0 {
		avgSpeedMph = distanceMiles / (durationMinutes / 60.0)
	}

	load := ComputeExternalLoad(LoadInput{
		Sport:             c.Sport,
		DistanceMiles:     distanceMiles,
		ElevationGainFeet: elevationFeet,
		DurationMinutes:   durationMinutes,
		AverageSpeedMph:   avgSpeedMph,
		OpenWater:         c.OpenWater,
	})

	// Fetch the HR stream for real workouts with heart-rate data. Spaced to
	// respect the provider rate limit.
	var hrStream []int
	if s.AverageHeartrate > 0 {
		time.Sleep(streamFetchDelay)
		hrStream, err = client.HeartRateStream(ctx, s.ID)
		if err != nil {
			log.Printf("ingest: hr stream fetch for activity %d: %v", s.ID, err)
			hrStream = nil
		}
	}

	restingHR, maxHR := float64(user.RestingHR), float64(user.MaxHR)

	trimp := 0.0
	method := models.TrimpMethodAverage
	if len(hrStream) > 0 && user.EnhancedTRIMP {
		if streamTrimp, serr := StreamTRIMP(hrStream, durationMinutes, restingHR, maxHR, user.Gender); serr == nil {
			trimp = streamTrimp
			method = models.TrimpMethodStream
		} else {
			log.Printf("ingest: stream TRIMP for activity %d fell back to average: %v", s.ID, serr)
			trimp = AverageTRIMP(durationMinutes, s.AverageHeartrate, restingHR, maxHR, user.Gender)
		}
	} else {
		trimp = AverageTRIMP(durationMinutes, s.AverageHeartrate, restingHR, maxHR, user.Gender)
	}

	var zones [5]float64
	if len(hrStream) > 0 {
		zones = StreamZoneTimes(hrStream, durationMinutes, restingHR, maxHR)
	} else if s.AverageHeartrate > 0 {
		zones = EstimateZoneTimes(s.AverageHeartrate, durationMinutes, restingHR, maxHR)
	}

	activity := &models.Activity{
		AthleteID:  user.ID,
		ActivityID: s.ID,
		Date:       localDate,
		Name:       s.Name,
		SportType:  c.Sport.StorageType(),

		DistanceMiles:     distanceMiles,
		ElevationGainFeet: elevationFeet,
		DurationMinutes:   durationMinutes,

		ElevationLoadMiles: load.ElevationLoadMiles,
		TotalLoadMiles:     load.TotalLoadMiles,
		Trimp:              trimp,
		TimeInZone:         zones,

		TrimpCalculationMethod: method,
		HRStreamSampleCount:    len(hrStream),
		TrimpProcessedAt:       sql.NullString{String: time.Now().UTC().Format(time.RFC3339Nano), Valid: true},

		CyclingEquivalentMiles:  load.CyclingEquivalentMiles,
		SwimmingEquivalentMiles: load.SwimmingEquivalentMiles,
		StrengthEquivalentMiles: load.StrengthEquivalentMiles,
		CyclingElevationFactor:  load.CyclingElevationFactor,
		AverageSpeedMph:         avgSpeedMph,
	}
	if s.AverageHeartrate > 0 {
		activity.AvgHeartRate = sql.NullFloat64{Float64: s.AverageHeartrate, Valid: true}
	}
	if s.MaxHeartrate > 0 {
		activity.MaxHeartRate = sql.NullFloat64{Float64: s.MaxHeartrate, Valid: true}
	}

	// A real activity replaces any synthetic rest day on its date.
	if err := models.DeleteRestDay(db, user.ID, localDate); err != nil {
		return err
	}

	if err := insertWithRecovery(db, activity); err != nil {
		if errors.Is(err, models.ErrDuplicateActivity) {
			return errSkipped
		}
		return err
	}

	// The stream row carries a foreign key to the activity, so it persists
	// only after the activity row is committed.
	if len(hrStream) > 0 {
		if err := models.InsertHRStream(db, user.ID, s.ID, hrStream, 1); err != nil {
			log.Printf("ingest: persist hr stream for activity %d: %v", s.ID, err)
		}
	}

	return nil
}

// insertWithRecovery retries a failed insert once after re-running schema
// initialization. Covers the first-boot path where a column migration has
// not landed yet.
func insertWithRecovery(db *sql.DB, a *models.Activity) error {
	err := models.InsertActivity(db, a)
	if err == nil || errors.Is(err, models.ErrDuplicateActivity) {
		return err
	}

	log.Printf("ingest: insert failed, re-initializing schema and retrying: %v", err)
	if migErr := database.RunMigrations(db); migErr != nil {
		return fmt.Errorf("ingest: schema re-init: %w", migErr)
	}
	return models.InsertActivity(db, a)
}

// CoverRestDays inserts a synthetic zero-load rest day for every date in
// [startDate, endDate] that is strictly in the past in the athlete's local
// zone and has no activity row. Today never gets a rest day — the workout
// may still happen.
func CoverRestDays(db *sql.DB, user *models.User, startDate, endDate string, now time.Time) (int, error) {
	loc := user.Location()
	today := now.In(loc).Format("2006-01-02")

	start, err := time.ParseInLocation("2006-01-02", startDate, loc)
	if err != nil {
		return 0, fmt.Errorf("ingest: parse coverage start %q: %w", startDate, err)
	}

	inserted := 0
	for d := start; ; d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		if date > endDate {
			break
		}
		if date >= today {
			break // strictly past dates only
		}

		covered, err := models.HasRowOnDate(db, user.ID, date)
		if err != nil {
			return inserted, err
		}
		if covered {
			continue
		}

		if err := models.InsertRestDay(db, user.ID, date); err != nil {
			if errors.Is(err, models.ErrDuplicateActivity) {
				continue // raced with another writer; coverage holds
			}
			return inserted, err
		}
		inserted++
	}

	return inserted, nil
}
