package ingest

// External-load model: every sport is normalized into running-equivalent
// miles so acute/chronic windows can mix sports on one scale.

// Conversion constants for the running-equivalence model.
const (
	runElevationDivisor  = 750.0  // feet of gain per equivalent running mile
	bikeElevationDivisor = 1100.0 // feet of gain per equivalent mile on the bike
	poolSwimFactor       = 4.0
	openWaterSwimFactor  = 4.2
	strengthLoadFactor   = 0.30
	defaultStrengthRPE   = 6.0
)

// Cycling distance divisors by effort band (average mph).
const (
	cyclingLeisureDivisor  = 3.0 // ≤ 12 mph
	cyclingModerateDivisor = 3.1 // ≤ 16 mph
	cyclingVigorousDivisor = 2.9 // ≤ 20 mph
	cyclingRacingDivisor   = 2.5 // > 20 mph
)

// ExternalLoad is the computed running-equivalent load for one activity,
// with the per-sport intermediates kept for diagnostics.
type ExternalLoad struct {
	TotalLoadMiles     float64
	ElevationLoadMiles float64

	CyclingEquivalentMiles  float64
	SwimmingEquivalentMiles float64
	StrengthEquivalentMiles float64
	CyclingElevationFactor  float64
}

// LoadInput carries the measurements the load model needs.
type LoadInput struct {
	Sport             Sport
	DistanceMiles     float64
	ElevationGainFeet float64
	DurationMinutes   float64
	AverageSpeedMph   float64
	RPE               float64 // strength only; 0 means unknown
	OpenWater         bool    // swimming only
}

// cyclingDivisor picks the speed-dependent distance divisor.
func cyclingDivisor(avgMph float64) float64 {
	switch {
	case avgMph <= 12:
		return cyclingLeisureDivisor
	case avgMph <= 16:
		return cyclingModerateDivisor
	case avgMph <= 20:
		return cyclingVigorousDivisor
	default:
		return cyclingRacingDivisor
	}
}

// ComputeExternalLoad converts an activity's mechanical work into
// running-equivalent miles.
func ComputeExternalLoad(in LoadInput) ExternalLoad {
	var out ExternalLoad

	switch in.Sport {
	case Running, Walking, Hiking:
		out.ElevationLoadMiles = in.ElevationGainFeet / runElevationDivisor
		out.TotalLoadMiles = in.DistanceMiles + out.ElevationLoadMiles

	case Cycling:
		div := cyclingDivisor(in.AverageSpeedMph)
		out.CyclingElevationFactor = div
		out.CyclingEquivalentMiles = in.DistanceMiles / div
		out.ElevationLoadMiles = in.ElevationGainFeet / bikeElevationDivisor
		out.TotalLoadMiles = out.CyclingEquivalentMiles + out.ElevationLoadMiles

	case Swimming:
		factor := poolSwimFactor
		if in.OpenWater {
			factor = openWaterSwimFactor
		}
		out.SwimmingEquivalentMiles = in.DistanceMiles * factor
		out.TotalLoadMiles = out.SwimmingEquivalentMiles

	case Strength:
		rpe := in.RPE
		if rpe <= 0 {
			rpe = defaultStrengthRPE
		}
		out.StrengthEquivalentMiles = (in.DurationMinutes / 60.0) * rpe * strengthLoadFactor
		out.TotalLoadMiles = out.StrengthEquivalentMiles

	case Rest:
		// zero load
	}

	return out
}
