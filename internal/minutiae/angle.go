package minutiae

import "math"

// Three angle domains coexist in this system, inherited from the wire
// format and the external matcher rather than chosen:
//
//   - internal: [0,180) — used by the pipeline stages
//   - wire:     [0,256) — a minutia record stores theta in one byte
//   - matcher:  [0,180) — what the external scorer consumes
//
// Internal and matcher share a range but are distinct domains: a wire
// byte wrapped mod 180 is not the same value as an internal angle that
// was never truncated. Every crossing goes through one of the Wrap
// functions below; nothing may assume the domains are interchangeable.

// WrapInternal wraps an angle into the pipeline's internal [0,180)
// domain.
func WrapInternal(theta int) int {
	return mod(theta, 180)
}

// WrapWire truncates an angle to the single-byte wire domain [0,256).
func WrapWire(theta int) int {
	return mod(theta, 256)
}

// WrapMatcher wraps an angle into the external matcher's [0,180) domain.
func WrapMatcher(theta int) int {
	return mod(theta, 180)
}

// mod is the non-negative remainder of a by n.
func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// CircularMean returns the circular mean of the given angles in degrees,
// wrapped into [0,360). Linear averaging is wrong across the 0/360 wrap:
// the mean of 350 and 10 is 0, not 180.
func CircularMean(angles []int) int {
	var sinSum, cosSum float64
	for _, a := range angles {
		rad := float64(a) * math.Pi / 180
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}
	deg := math.Atan2(sinSum, cosSum) * 180 / math.Pi
	return mod(int(math.Round(deg)), 360)
}
