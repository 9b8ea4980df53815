package pipeline

import (
	"sort"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
)

// Stabilize resizes a quantized set to exactly size points, sorted by
// (x, y, theta).
//
// Points farther than radius from the median center are dropped first.
// The radius is a fixed constant rather than an adaptive one: an
// adaptive cutoff would make the surviving set depend on the outliers
// it is supposed to ignore. If more than size points survive, the ones
// closest to the median center are kept. If fewer survive, the set is
// padded with synthetic points on a fixed arithmetic progression.
//
// Synthetic pad points are not tagged in the wire format, so a decoder
// cannot tell them from real minutiae. Known limitation, preserved for
// wire compatibility.
func Stabilize(set minutiae.Set, radius, size int) minutiae.Set {
	mx, my := medianCenter(set)

	type scored struct {
		p    minutiae.Point
		dist int
	}
	kept := make([]scored, 0, len(set))
	for _, p := range set {
		d := sqDist(p, mx, my)
		if d > radius*radius {
			continue
		}
		kept = append(kept, scored{p: p, dist: d})
	}

	if len(kept) > size {
		sort.SliceStable(kept, func(i, j int) bool {
			if kept[i].dist != kept[j].dist {
				return kept[i].dist < kept[j].dist
			}
			return lessXYT(kept[i].p, kept[j].p)
		})
		kept = kept[:size]
	}

	out := make(minutiae.Set, 0, size)
	for _, s := range kept {
		out = append(out, s.p)
	}
	for i := 0; len(out) < size; i++ {
		out = append(out, syntheticPoint(i))
	}

	return out.Sorted()
}

// syntheticPoint returns the i-th pad point of the fixed progression.
func syntheticPoint(i int) minutiae.Point {
	return minutiae.ClampToImage(minutiae.Point{
		X:     300 + 10*i,
		Y:     300 + 10*i,
		Theta: minutiae.WrapWire(20 * i),
	})
}

// medianCenter returns the per-axis median of the set, or the image
// center for an empty set.
func medianCenter(set minutiae.Set) (int, int) {
	if len(set) == 0 {
		return minutiae.CenterX, minutiae.CenterY
	}
	xs := make([]int, len(set))
	ys := make([]int, len(set))
	for i, p := range set {
		xs[i] = p.X
		ys[i] = p.Y
	}
	sort.Ints(xs)
	sort.Ints(ys)
	return xs[len(xs)/2], ys[len(ys)/2]
}

func sqDist(p minutiae.Point, x, y int) int {
	dx := p.X - x
	dy := p.Y - y
	return dx*dx + dy*dy
}

func lessXYT(a, b minutiae.Point) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Theta < b.Theta
}
