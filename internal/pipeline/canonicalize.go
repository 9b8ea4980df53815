package pipeline

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
	"github.com/kweli-data/minutiae.registry/internal/monitoring"
)

// Canonicalize normalizes a fused set's position and orientation so the
// same finger yields comparable templates regardless of how the capture
// was rotated or offset.
//
// The orientation estimate is robust: coordinates are weighted by the
// inverse interquartile range per axis before building the covariance
// matrix, so a handful of stray minutiae cannot steer the principal
// axis. The rotation angle is normalized into (-90, 90] because a
// principal axis is a line, not a vector; without that the same finger
// could canonicalize 180 degrees apart.
//
// If the covariance is singular or the set is too small to orient
// (degenerate geometry), rotation is skipped and the set is only
// centered and clamped. That path is a recoverable fallback, not a
// failure.
//
// Both paths finish with the angle-diversity redistribution pass.
func Canonicalize(set minutiae.Set) minutiae.Set {
	if len(set) == 0 {
		return nil
	}

	cx, cy := set.Centroid()

	// Centered float coordinates for the orientation estimate.
	xs := make([]float64, len(set))
	ys := make([]float64, len(set))
	for i, p := range set {
		xs[i] = float64(p.X) - cx
		ys[i] = float64(p.Y) - cy
	}

	angleDeg, ok := principalAxisAngle(xs, ys)
	if !ok {
		monitoring.Logf("canonicalize: degenerate geometry (%d points), centering only", len(set))
		return recenterOnly(set, cx, cy)
	}

	theta := angleDeg * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)

	out := make(minutiae.Set, len(set))
	for i, p := range set {
		rx := xs[i]*cos - ys[i]*sin
		ry := xs[i]*sin + ys[i]*cos
		q := minutiae.Point{
			X:     int(math.Round(rx)) + minutiae.CenterX,
			Y:     int(math.Round(ry)) + minutiae.CenterY,
			Theta: minutiae.WrapInternal(int(math.Round(float64(p.Theta) + angleDeg))),
		}
		out[i] = minutiae.ClampToImage(q)
	}

	return RedistributeAngles(out)
}

// recenterOnly is the degenerate fallback: translate to image center,
// clamp, wrap angles into the internal domain.
func recenterOnly(set minutiae.Set, cx, cy float64) minutiae.Set {
	out := make(minutiae.Set, len(set))
	for i, p := range set {
		q := minutiae.Point{
			X:     int(math.Round(float64(p.X)-cx)) + minutiae.CenterX,
			Y:     int(math.Round(float64(p.Y)-cy)) + minutiae.CenterY,
			Theta: minutiae.WrapInternal(p.Theta),
		}
		out[i] = minutiae.ClampToImage(q)
	}
	return RedistributeAngles(out)
}

// principalAxisAngle estimates the dominant orientation of the centered
// point cloud and returns the rotation (in degrees, normalized into
// (-90, 90]) that aligns it with the x axis. ok is false when the
// geometry cannot support an estimate.
func principalAxisAngle(xs, ys []float64) (deg float64, ok bool) {
	if len(xs) < 3 {
		return 0, false
	}

	// Robust spread per axis; floor at 1 to avoid dividing by zero on
	// collapsed axes.
	xIQR := math.Max(iqr(xs), 1)
	yIQR := math.Max(iqr(ys), 1)

	wx := make([]float64, len(xs))
	wy := make([]float64, len(ys))
	for i := range xs {
		wx[i] = xs[i] / xIQR
		wy[i] = ys[i] / yIQR
	}

	cov := mat.NewSymDense(2, []float64{
		stat.Variance(wx, nil), stat.Covariance(wx, wy, nil),
		stat.Covariance(wx, wy, nil), stat.Variance(wy, nil),
	})

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return 0, false
	}

	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvector of the larger (absolute) eigenvalue is the principal
	// axis.
	principal := 0
	if math.Abs(vals[1]) > math.Abs(vals[0]) {
		principal = 1
	}
	vx := vecs.At(0, principal)
	vy := vecs.At(1, principal)
	if vx == 0 && vy == 0 {
		return 0, false
	}

	deg = math.Atan2(vy, vx) * 180 / math.Pi
	// An axis has a 180-degree ambiguity; fold into (-90, 90].
	if deg > 90 {
		deg -= 180
	} else if deg < -90 {
		deg += 180
	}
	return deg, true
}

// iqr returns the interquartile range of the values.
func iqr(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	return q3 - q1
}
