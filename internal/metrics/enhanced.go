package metrics

import (
	"database/sql"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/mkendall/stride/internal/models"
)

// EdgeCase names the structured degenerate outcomes of the enhanced engine.
type EdgeCase string

const (
	EdgeNone                    EdgeCase = ""
	EdgeNoData                  EdgeCase = "no_data"
	EdgeNoAcuteData             EdgeCase = "no_acute_data"
	EdgeNoChronicData           EdgeCase = "no_chronic_data"
	EdgeInsufficientChronicData EdgeCase = "insufficient_chronic_data"
	EdgeSignificantDataGaps     EdgeCase = "significant_data_gaps"
	EdgeFutureDates             EdgeCase = "future_dates"
)

// Computation tiers selected by activity volume.
const (
	tierDirect  = "direct"
	tierLookup  = "lookup"
	tierBatched = "batched"

	lookupThreshold  = 1000
	batchedThreshold = 10000
	batchSize        = 1000
)

// EnhancedConfig is the per-athlete configuration of the decayed engine.
type EnhancedConfig struct {
	ChronicDays int     // clamped to [28, 90]
	DecayRate   float64 // λ in w = e^(−λ·d), clamped to (0, 1]
}

// normalize applies the configuration bounds.
func (c EnhancedConfig) normalize() EnhancedConfig {
	if c.ChronicDays < 28 {
		c.ChronicDays = 28
	}
	if c.ChronicDays > 90 {
		c.ChronicDays = 90
	}
	if c.DecayRate <= 0 || c.DecayRate > 1 {
		c.DecayRate = 0.05
	}
	return c
}

// EnhancedResult is the structured output of one enhanced computation.
type EnhancedResult struct {
	models.DailyAggregates
	EdgeCase EdgeCase
	Tier     string
}

// ComputeEnhanced derives recency-weighted aggregates over the activities
// of the chronic window ending at refDate. The chronic side weights each
// activity by e^(−λ·d) for d days before the reference; the acute side is a
// plain 7-day mean — chronic stress is old, acute is recent and treated
// uniformly.
func ComputeEnhanced(activities []*models.Activity, refDate string, cfg EnhancedConfig) (EnhancedResult, error) {
	cfg = cfg.normalize()
	var res EnhancedResult

	ref, err := time.Parse("2006-01-02", refDate)
	if err != nil {
		return res, fmt.Errorf("metrics: parse reference date %q: %w", refDate, err)
	}

	if len(activities) == 0 {
		res.EdgeCase = EdgeNoData
		return res, nil
	}

	// Pre-scan: day offsets, window membership, degenerate shapes.
	type weighted struct {
		daysAgo int
		load    float64
		trimp   float64
	}
	var chronic []weighted
	var acuteLoad, acuteTrimp float64
	acuteRows := 0
	activeDays := map[int]bool{}

	for _, a := range activities {
		day, err := time.Parse("2006-01-02", a.Date)
		if err != nil {
			return res, fmt.Errorf("metrics: parse activity date %q: %w", a.Date, err)
		}
		daysAgo := int(ref.Sub(day).Hours() / 24)
		if daysAgo < 0 {
			res.EdgeCase = EdgeFutureDates
			return res, nil
		}
		if daysAgo >= cfg.ChronicDays {
			continue
		}

		chronic = append(chronic, weighted{daysAgo, a.TotalLoadMiles, a.Trimp})
		if !a.IsRestDay() || a.TotalLoadMiles > 0 {
			activeDays[daysAgo] = true
		}
		if daysAgo < acuteDays {
			acuteLoad += a.TotalLoadMiles
			acuteTrimp += a.Trimp
			acuteRows++
		}
	}

	switch {
	case len(chronic) == 0:
		res.EdgeCase = EdgeNoData
		return res, nil
	case acuteRows == 0:
		res.EdgeCase = EdgeNoAcuteData
		return res, nil
	case len(chronic) == acuteRows && cfg.ChronicDays > acuteDays:
		res.EdgeCase = EdgeNoChronicData
		return res, nil
	case len(activeDays) < acuteDays:
		res.EdgeCase = EdgeInsufficientChronicData
		return res, nil
	case len(activeDays)*2 < cfg.ChronicDays:
		res.EdgeCase = EdgeSignificantDataGaps
		return res, nil
	}

	// Weighted chronic sums, tiered by volume to bound exponentiation cost.
	var sumW, sumLoadW, sumTrimpW float64
	switch {
	case len(chronic) <= lookupThreshold:
		res.Tier = tierDirect
		for _, w := range chronic {
			weight := math.Exp(-cfg.DecayRate * float64(w.daysAgo))
			sumW += weight
			sumLoadW += w.load * weight
			sumTrimpW += w.trimp * weight
		}

	case len(chronic) <= batchedThreshold:
		res.Tier = tierLookup
		lookup := weightLookup(cfg)
		for _, w := range chronic {
			weight := lookup[w.daysAgo]
			sumW += weight
			sumLoadW += w.load * weight
			sumTrimpW += w.trimp * weight
		}

	default:
		res.Tier = tierBatched
		lookup := weightLookup(cfg)
		for i := 0; i < len(chronic); i += batchSize {
			end := min(i+batchSize, len(chronic))
			var pw, pl, pt float64
			for _, w := range chronic[i:end] {
				weight := lookup[w.daysAgo]
				pw += weight
				pl += w.load * weight
				pt += w.trimp * weight
			}
			sumW += pw
			sumLoadW += pl
			sumTrimpW += pt
		}
	}

	if sumW == 0 {
		res.EdgeCase = EdgeNoChronicData
		return res, nil
	}

	res.SevenDayAvgLoad = acuteLoad / acuteDays
	res.SevenDayAvgTrimp = acuteTrimp / acuteDays
	res.TwentyEightDayAvgLoad = sumLoadW / sumW
	res.TwentyEightDayAvgTrimp = sumTrimpW / sumW
	res.AcuteChronicRatio = ratio(res.SevenDayAvgLoad, res.TwentyEightDayAvgLoad)
	res.TrimpAcuteChronicRatio = ratio(res.SevenDayAvgTrimp, res.TwentyEightDayAvgTrimp)
	res.NormalizedDivergence = Divergence(res.AcuteChronicRatio, res.TrimpAcuteChronicRatio)

	return res, nil
}

// weightLookup precomputes e^(−λ·d) per days-ago offset.
func weightLookup(cfg EnhancedConfig) []float64 {
	lookup := make([]float64, cfg.ChronicDays)
	for d := range lookup {
		lookup[d] = math.Exp(-cfg.DecayRate * float64(d))
	}
	return lookup
}

// UpdateDayEnhanced recomputes the decayed aggregates for one date and
// writes them into the fixed aggregate columns (readers consult the
// athlete's configured window to interpret the chronic average). Any
// failure in the enhanced path falls back to the standard engine and logs
// the downgrade. Edge-case results write zeros rather than stale values.
func UpdateDayEnhanced(db *sql.DB, user *models.User, date string) error {
	cfg := EnhancedConfig{ChronicDays: user.ACWRChronicDays, DecayRate: user.ACWRDecayRate}.normalize()

	chronicStart, err := addDays(date, -(cfg.ChronicDays - 1))
	if err != nil {
		return fallbackToStandard(db, user, date, err)
	}

	activities, err := models.ListActivitiesInRange(db, user.ID, chronicStart, date)
	if err != nil {
		return fallbackToStandard(db, user, date, err)
	}

	res, err := ComputeEnhanced(activities, date, cfg)
	if err != nil {
		return fallbackToStandard(db, user, date, err)
	}
	if res.EdgeCase != EdgeNone {
		log.Printf("metrics: enhanced engine edge case %q for athlete %d date %s", res.EdgeCase, user.ID, date)
	}

	return models.UpdateDailyAggregates(db, user.ID, date, res.DailyAggregates)
}

func fallbackToStandard(db *sql.DB, user *models.User, date string, cause error) error {
	log.Printf("metrics: enhanced engine downgrade to standard for athlete %d date %s: %v", user.ID, date, cause)
	return UpdateDay(db, user.ID, date)
}
