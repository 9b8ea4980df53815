package pipeline

import (
	"math"
	"sort"

	"github.com/kweli-data/minutiae.registry/internal/minutiae"
)

// Angle histogram used by the redistribution pass: 8 equal bins over
// the internal [0,180) domain.
const (
	angleBins = 8
	binWidth  = 180.0 / angleBins
)

// RedistributeAngles spreads naturally clustered ridge angles across the
// angle histogram so later quantization cannot collapse them into one
// bin and erase their discriminative power.
//
// Bins holding more than 1.5x the fair share give up their excess,
// farthest-from-bin-center first, to whichever bin is currently least
// occupied; reassigned angles land at the target bin's center plus a
// small offset derived from the point's index. A second pass moves one
// point into any bin still empty, where population allows.
//
// The pass is a pure function of input order: offsets come from indices,
// never from a clock or a random source. Point positions are untouched;
// only angles move.
func RedistributeAngles(set minutiae.Set) minutiae.Set {
	if len(set) == 0 {
		return nil
	}
	out := set.Clone()

	bins := make([]int, len(out))
	var counts [angleBins]int
	for i, p := range out {
		th := minutiae.WrapInternal(p.Theta)
		out[i].Theta = th
		bins[i] = binOf(th)
		counts[bins[i]]++
	}

	fair := len(out) / angleBins
	if fair < 1 {
		fair = 1
	}

	for bin := 0; bin < angleBins; bin++ {
		if float64(counts[bin]) <= 1.5*float64(fair) {
			continue
		}

		center := binCenter(bin)
		var members []int
		for i, b := range bins {
			if b == bin {
				members = append(members, i)
			}
		}
		// Farthest from the bin center move first; index order breaks
		// ties so the pass stays deterministic.
		sort.SliceStable(members, func(a, b int) bool {
			da := math.Abs(float64(out[members[a]].Theta) - center)
			db := math.Abs(float64(out[members[b]].Theta) - center)
			if da != db {
				return da > db
			}
			return members[a] < members[b]
		})

		excess := members[:len(members)-fair]
		for i, idx := range excess {
			target := leastOccupied(counts)
			if counts[target] >= fair {
				// Everything is at fair share already; cycle instead of
				// piling onto one bin.
				target = (bin + i%angleBins) % angleBins
			}
			variation := float64((i%5 - 2) * 2) // -4,-2,0,+2,+4 degrees
			out[idx].Theta = minutiae.WrapInternal(int(math.Round(binCenter(target) + variation)))
			counts[bin]--
			counts[target]++
			bins[idx] = target
		}
	}

	// Second pass: every bin gets at least one point where the
	// population can cover it.
	for bin := 0; bin < angleBins; bin++ {
		if counts[bin] != 0 {
			continue
		}
		src := richestBin(counts, fair)
		if src < 0 {
			continue
		}
		for i, b := range bins {
			if b != src {
				continue
			}
			out[i].Theta = minutiae.WrapInternal(int(math.Round(binCenter(bin))))
			bins[i] = bin
			counts[src]--
			counts[bin]++
			break
		}
	}

	return out
}

func binOf(theta int) int {
	b := int(float64(theta) / binWidth)
	if b > angleBins-1 {
		b = angleBins - 1
	}
	return b
}

func binCenter(bin int) float64 {
	return (float64(bin) + 0.5) * binWidth
}

// leastOccupied returns the lowest-index bin with the smallest count.
func leastOccupied(counts [angleBins]int) int {
	best := 0
	for b := 1; b < angleBins; b++ {
		if counts[b] < counts[best] {
			best = b
		}
	}
	return best
}

// richestBin returns the bin best able to donate a point: the most
// populated bin above the fair share, or failing that the most populated
// bin holding more than one point. Returns -1 when no bin can donate.
func richestBin(counts [angleBins]int, fair int) int {
	src := -1
	for b := 0; b < angleBins; b++ {
		if counts[b] > fair && (src < 0 || counts[b] > counts[src]) {
			src = b
		}
	}
	if src >= 0 {
		return src
	}
	for b := 0; b < angleBins; b++ {
		if counts[b] > 1 && (src < 0 || counts[b] > counts[src]) {
			src = b
		}
	}
	return src
}
