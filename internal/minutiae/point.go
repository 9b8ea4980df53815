// Package minutiae defines the core value types shared by every stage of
// the template pipeline: a single minutia point, an unordered point set,
// the image-bounds invariants, and the three coexisting angle domains.
//
// Sets are plain slices. Stages never mutate their input in place; each
// stage returns a new value, and sets are materialized sorted by
// (x, y, theta) at stage boundaries so the pipeline is deterministic.
package minutiae

import "sort"

// Image profile constants. All enrolled samples are normalized to this
// frame before extraction, so coordinates are bounded by them.
const (
	ImageWidth  = 500
	ImageHeight = 500

	CenterX = ImageWidth / 2
	CenterY = ImageHeight / 2
)

// Point is a single fingerprint minutia: a ridge feature at (X, Y) with
// ridge direction Theta. The domain of Theta depends on the pipeline
// stage; see angle.go.
type Point struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Theta int `json:"theta"`
}

// Set is a collection of minutia points. Order is not significant except
// at stage boundaries, where Sorted establishes the canonical order.
type Set []Point

// Sorted returns a copy of the set ordered by (x, y, theta) ascending.
// The receiver is not modified.
func (s Set) Sorted() Set {
	out := s.Clone()
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].Theta < out[j].Theta
	})
	return out
}

// Clone returns a copy of the set that shares no storage with the
// receiver.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Centroid returns the arithmetic mean position of the set. For an empty
// set it returns the image center.
func (s Set) Centroid() (x, y float64) {
	if len(s) == 0 {
		return float64(CenterX), float64(CenterY)
	}
	var sx, sy float64
	for _, p := range s {
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	n := float64(len(s))
	return sx / n, sy / n
}

// ClampToImage restricts the point's coordinates to
// [0,ImageWidth-1] x [0,ImageHeight-1]. Theta is untouched.
func ClampToImage(p Point) Point {
	p.X = clamp(p.X, 0, ImageWidth-1)
	p.Y = clamp(p.Y, 0, ImageHeight-1)
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
