package motion

import "math"

// ComputeTiming estimates the symmetric trapezoidal profile for a burst of
// steps at the given peak rate and ramp. Falls back to a triangular profile
// when the burst is too short to reach speed. Pure and deterministic; all
// intermediate math in float64, final conversions rounded half away from
// zero.
func ComputeTiming(steps uint32, speedHz, acceleration int32) TimingEstimate {
	timing := TimingEstimate{TotalSteps: steps}
	if steps == 0 || speedHz <= 0 || acceleration <= 0 {
		return timing
	}

	v := float64(speedHz)
	a := float64(acceleration)

	rampSteps := 0.5 * (v * v) / a
	if float64(steps) >= 2.0*rampSteps {
		cruiseSteps := float64(steps) - 2.0*rampSteps
		tAccel := v / a
		tCruise := cruiseSteps / v
		totalSeconds := 2.0*tAccel + tCruise

		timing.AccelSteps = uint32(math.Round(rampSteps))
		timing.CruiseSteps = uint32(math.Round(cruiseSteps))
		timing.TotalDurationUs = uint32(math.Round(totalSeconds * microsPerSecond))
	} else {
		peakVelocity := math.Sqrt(float64(steps) * a)
		tAccel := peakVelocity / a
		totalSeconds := 2.0 * tAccel

		timing.AccelSteps = steps / 2
		timing.CruiseSteps = 0
		timing.TotalDurationUs = uint32(math.Round(totalSeconds * microsPerSecond))
	}
	return timing
}

// halfPeriodMicros derives the STEP dwell time from the step rate. The
// generator holds STEP high and low for this long, so a full period is two
// dwells; never less than 1us to keep the PIO delay counter alive.
func halfPeriodMicros(speedHz int32) uint32 {
	clamped := speedHz
	if clamped < 1 {
		clamped = 1
	}
	periodUs := math.Round(math.Max(1.0, microsPerSecond/float64(clamped)))
	half := uint32(periodUs) / 2
	if half < 1 {
		half = 1
	}
	return half
}
