package pipeline

import (
	"math"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
)

// Quantize snaps coordinates to a regular grid and angles to a fixed
// step. Cardinality is preserved.
//
// Before snapping, each angle receives a small deterministic offset
// hashed from the point's position. Without it, uniform rounding pushes
// near-identical angles into the same quantization bin; with it, the
// perturbation is reproducible for the same point across runs, which a
// random jitter would not be.
func Quantize(set minutiae.Set, gridStep, angleStep int) minutiae.Set {
	if len(set) == 0 {
		return nil
	}
	out := make(minutiae.Set, len(set))
	for i, p := range set {
		p = minutiae.ClampToImage(p)

		qx := snap(p.X, gridStep)
		qy := snap(p.Y, gridStep)

		// Position hash scaled into a [-2, +2) degree offset.
		positionHash := (p.X*31 + p.Y*17) % 100
		offset := (float64(positionHash)/100 - 0.5) * 4

		step := float64(angleStep)
		qtheta := int(math.Floor((float64(p.Theta)+offset+step/2)/step)) * angleStep

		out[i] = minutiae.ClampToImage(minutiae.Point{
			X:     qx,
			Y:     qy,
			Theta: minutiae.WrapInternal(qtheta),
		})
	}
	return out
}

// snap rounds v to the nearest multiple of step.
func snap(v, step int) int {
	return int(math.Round(float64(v)/float64(step))) * step
}
