package ingest

import (
	"fmt"
	"math"
)

// Banister TRIMP coefficients.
const (
	trimpScale       = 0.64
	trimpExpMale     = 1.92
	trimpExpFemale   = 1.67
	maxInvalidSample = 0.5 // stream form falls back past this invalid fraction
)

// banisterExponent selects the gender coefficient.
func banisterExponent(gender string) float64 {
	if gender == "female" {
		return trimpExpFemale
	}
	return trimpExpMale
}

// hrReserveRatio computes the heart-rate reserve fraction, clamped to [0,1].
func hrReserveRatio(hr, restingHR, maxHR float64) float64 {
	reserve := maxHR - restingHR
	if reserve <= 0 {
		return 0
	}
	ratio := (hr - restingHR) / reserve
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// AverageTRIMP computes the Banister training impulse from the session
// average heart rate: duration × HRR × 0.64 × e^(k·HRR).
func AverageTRIMP(durationMinutes, avgHR, restingHR, maxHR float64, gender string) float64 {
	if durationMinutes <= 0 || avgHR <= 0 {
		return 0
	}
	hrr := hrReserveRatio(avgHR, restingHR, maxHR)
	if hrr == 0 {
		return 0
	}
	return durationMinutes * hrr * trimpScale * math.Exp(banisterExponent(gender)*hrr)
}

// StreamTRIMP computes TRIMP per heart-rate sample, each sample weighted
// with an equal share of the total duration, summed across valid samples.
// Returns an error when more than half the samples are invalid; callers
// fall back to the average form.
func StreamTRIMP(samples []int, durationMinutes, restingHR, maxHR float64, gender string) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("ingest: empty hr stream")
	}
	if durationMinutes <= 0 {
		return 0, fmt.Errorf("ingest: non-positive duration")
	}

	perSample := durationMinutes / float64(len(samples))
	k := banisterExponent(gender)

	var total float64
	invalid := 0
	for _, hr := range samples {
		if hr <= 0 || float64(hr) > maxHR+30 {
			invalid++
			continue
		}
		hrr := hrReserveRatio(float64(hr), restingHR, maxHR)
		total += perSample * hrr * trimpScale * math.Exp(k*hrr)
	}

	if float64(invalid) > maxInvalidSample*float64(len(samples)) {
		return 0, fmt.Errorf("ingest: %d of %d hr samples invalid", invalid, len(samples))
	}
	return total, nil
}

// Zone boundaries as fractions of heart-rate reserve. Zone i spans
// [zoneFloor[i], zoneFloor[i]+0.10) of reserve; zone 5 is open-ended.
var zoneFloors = [5]float64{0.50, 0.60, 0.70, 0.80, 0.90}

// zoneForHR returns the 1-based zone containing a heart rate, or 0 when the
// rate sits below 50% of reserve.
func zoneForHR(hr, restingHR, maxHR float64) int {
	ratio := hrReserveRatio(hr, restingHR, maxHR)
	switch {
	case ratio < zoneFloors[0]:
		return 0
	case ratio >= zoneFloors[4]:
		return 5
	default:
		return int((ratio-0.50)/0.10) + 1
	}
}

// StreamZoneTimes walks a heart-rate stream and buckets each sample's share
// of the duration into zones 1–5 (seconds).
func StreamZoneTimes(samples []int, durationMinutes, restingHR, maxHR float64) [5]float64 {
	var zones [5]float64
	if len(samples) == 0 || durationMinutes <= 0 {
		return zones
	}

	perSampleSeconds := durationMinutes * 60 / float64(len(samples))
	for _, hr := range samples {
		if hr <= 0 {
			continue
		}
		if z := zoneForHR(float64(hr), restingHR, maxHR); z > 0 {
			zones[z-1] += perSampleSeconds
		}
	}
	return zones
}

// EstimateZoneTimes approximates the zone distribution when no stream is
// available: 60% of total time in the zone containing the average heart
// rate and 20% in each adjacent zone, clamped at the edges (an absent
// neighbor's share stays in the center zone).
func EstimateZoneTimes(avgHR, durationMinutes, restingHR, maxHR float64) [5]float64 {
	var zones [5]float64
	if avgHR <= 0 || durationMinutes <= 0 {
		return zones
	}

	center := zoneForHR(avgHR, restingHR, maxHR)
	if center == 0 {
		center = 1
	}

	totalSeconds := durationMinutes * 60
	centerShare := 0.60
	below, above := center-1, center+1
	if below < 1 {
		centerShare += 0.20
		below = 0
	}
	if above > 5 {
		centerShare += 0.20
		above = 0
	}

	zones[center-1] = totalSeconds * centerShare
	if below > 0 {
		zones[below-1] = totalSeconds * 0.20
	}
	if above > 0 {
		zones[above-1] = totalSeconds * 0.20
	}
	return zones
}
